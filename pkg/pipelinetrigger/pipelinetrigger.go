// Package pipelinetrigger kicks off the downstream GitLab CI pipeline that
// runs the full analysis suite against freshly reduced data.
package pipelinetrigger

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/ezhttp"
	"github.com/jpillora/backoff"
)

const triggerAttempts = 3

type Config struct {
	BaseURL   string // e.g. https://gitlab.example.org
	ProjectID string
	Token     string // pipeline trigger token
	Ref       string // branch or tag to run against
}

func (c Config) Validate() error {
	if c.BaseURL == "" || c.ProjectID == "" || c.Token == "" {
		return fmt.Errorf("pipelinetrigger: base url, project id and token are all required")
	}

	return nil
}

type triggerRequest struct {
	Token     string            `json:"token"`
	Ref       string            `json:"ref"`
	Variables map[string]string `json:"variables,omitempty"`
}

type Pipeline struct {
	ID     int    `json:"id"`
	Status string `json:"status"`
	WebURL string `json:"web_url"`
}

// variables are handed to the pipeline as CI variables (run number etc.)
func Trigger(ctx context.Context, conf Config, variables map[string]string, logger *log.Logger) (*Pipeline, error) {
	logl := logex.Levels(logex.Prefix("pipelinetrigger", logger))

	if err := conf.Validate(); err != nil {
		return nil, err
	}

	ref := conf.Ref
	if ref == "" {
		ref = "main"
	}

	url := fmt.Sprintf("%s/api/v4/projects/%s/trigger/pipeline", conf.BaseURL, conf.ProjectID)

	request := triggerRequest{
		Token:     conf.Token,
		Ref:       ref,
		Variables: variables,
	}

	retry := &backoff.Backoff{Min: 1 * time.Second, Max: 15 * time.Second}

	var lastErr error
	for attempt := 1; attempt <= triggerAttempts; attempt++ {
		pipeline := &Pipeline{}
		_, err := ezhttp.Post(ctx, url,
			ezhttp.SendJson(&request),
			ezhttp.RespondsJson(pipeline, true))
		if err == nil {
			logl.Info.Printf("pipeline %d (%s) on %s", pipeline.ID, pipeline.Status, ref)
			return pipeline, nil
		}

		lastErr = err
		logl.Error.Printf("attempt %d: %v", attempt, err)

		select {
		case <-time.After(retry.Duration()):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("pipelinetrigger: %d attempts failed: %w", triggerAttempts, lastErr)
}

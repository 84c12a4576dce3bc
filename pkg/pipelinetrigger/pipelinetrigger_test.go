package pipelinetrigger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/function61/gokit/assert"
)

func TestTrigger(t *testing.T) {
	var received triggerRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.EqualString(t, r.URL.Path, "/api/v4/projects/42/trigger/pipeline")
		assert.Ok(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Pipeline{ID: 7, Status: "pending", WebURL: "https://gitlab.example.org/p/-/pipelines/7"})
	}))
	defer server.Close()

	pipeline, err := Trigger(context.Background(), Config{
		BaseURL:   server.URL,
		ProjectID: "42",
		Token:     "glptt-secret",
		Ref:       "main",
	}, map[string]string{"RUN_NUMBER": "1060"}, nil)
	assert.Ok(t, err)

	assert.Assert(t, pipeline.ID == 7)
	assert.EqualString(t, received.Token, "glptt-secret")
	assert.EqualString(t, received.Variables["RUN_NUMBER"], "1060")
}

func TestTriggerValidation(t *testing.T) {
	_, err := Trigger(context.Background(), Config{}, nil, nil)
	assert.Assert(t, err != nil)
}

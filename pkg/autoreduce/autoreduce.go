// Package autoreduce reduces runs without operator involvement: it runs as a
// Lambda function behind S3 notifications and fires whenever the acquisition
// system drops a raw run file into the exchange bucket.
package autoreduce

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/function61/gokit/aws/lambdautils"
	"github.com/function61/gokit/logex"
	"github.com/hb2btools/hidractl/pkg/archive"
	"github.com/hb2btools/hidractl/pkg/hidra"
	"github.com/hb2btools/hidractl/pkg/nexus"
	"github.com/hb2btools/hidractl/pkg/pipelinetrigger"
	"github.com/hb2btools/hidractl/pkg/projectfile"
	"github.com/hb2btools/hidractl/pkg/reduction"
)

func LambdaEntrypoint() error {
	logger := logex.StandardLogger()

	lambda.StartHandler(lambdautils.NewMultiEventTypeHandler(func(ctx context.Context, ev interface{}) ([]byte, error) {
		switch e := ev.(type) {
		case *events.S3Event:
			return nil, Handle(ctx, e, logger)
		default:
			return nil, errors.New("unsupported event")
		}
	}))

	// doesn't reach here
	return nil
}

func Handle(ctx context.Context, e *events.S3Event, logger *log.Logger) error {
	logl := logex.Levels(logex.Prefix("autoreduce", logger))

	for _, record := range e.Records {
		bucket := record.S3.Bucket.Name
		key := record.S3.Object.Key

		ipts, runNumber, err := parseRawKey(key)
		if err != nil {
			// the bucket holds more than raw runs, skip anything else
			logl.Debug.Printf("skipping %s: %v", key, err)
			continue
		}

		logl.Info.Printf("run %d (IPTS-%d) arrived as s3://%s/%s", runNumber, ipts, bucket, key)

		if err := reduceFromBucket(ctx, bucket, record.AWSRegion, key, ipts, runNumber, logger); err != nil {
			return fmt.Errorf("autoreduce: run %d: %w", runNumber, err)
		}
	}

	return nil
}

// IPTS-22731/nexus/HB2B_1060.nxs.h5 => (22731, 1060)
func parseRawKey(key string) (int, int, error) {
	ipts := 0
	runNumber := 0
	if _, err := fmt.Sscanf(key, "IPTS-%d/nexus/HB2B_%d.nxs.h5", &ipts, &runNumber); err != nil {
		return 0, 0, fmt.Errorf("not a raw run file: %s", key)
	}

	return ipts, runNumber, nil
}

func reduceFromBucket(
	ctx context.Context,
	bucket string,
	region string,
	key string,
	ipts int,
	runNumber int,
	logger *log.Logger,
) error {
	tempDir, err := ioutil.TempDir("", "autoreduce")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tempDir)

	rawPath := filepath.Join(tempDir, "raw.nxs.h5")
	if err := downloadObject(ctx, bucket, region, key, rawPath); err != nil {
		return err
	}

	ws, err := nexus.ReadRun(rawPath)
	if err != nil {
		return err
	}
	ws.Instrument = hidra.DefaultInstrument()

	if err := reduction.Reduce(ctx, ws, reduction.Options{}, logger); err != nil {
		return err
	}

	projectPath := filepath.Join(tempDir, fmt.Sprintf("HB2B_%d.h5", runNumber))

	store, err := projectfile.Open(projectPath, projectfile.Overwrite, logger)
	if err != nil {
		return err
	}

	if err := projectfile.SaveWorkspace(store, ws); err != nil {
		store.Close()
		return err
	}
	if err := store.Close(); err != nil {
		return err
	}

	exchange, err := archive.New(bucket, region, logger)
	if err != nil {
		return err
	}

	uploadedKey, err := exchange.UploadProject(ctx, ipts, runNumber, projectPath)
	if err != nil {
		return err
	}

	logex.Levels(logger).Info.Printf("run %d reduced to s3://%s/%s", runNumber, bucket, uploadedKey)

	return triggerDownstream(ctx, runNumber, logger)
}

// hands the freshly reduced run to the downstream analysis pipeline. not
// configuring GitLab disables this step.
func triggerDownstream(ctx context.Context, runNumber int, logger *log.Logger) error {
	conf := pipelinetrigger.Config{
		BaseURL:   os.Getenv("GITLAB_BASE_URL"),
		ProjectID: os.Getenv("GITLAB_PROJECT_ID"),
		Token:     os.Getenv("GITLAB_TRIGGER_TOKEN"),
		Ref:       os.Getenv("GITLAB_REF"),
	}
	if conf.BaseURL == "" {
		return nil
	}

	_, err := pipelinetrigger.Trigger(ctx, conf, map[string]string{
		"HIDRA_RUN_NUMBER": strconv.Itoa(runNumber),
	}, logger)

	return err
}

func downloadObject(ctx context.Context, bucket string, region string, key string, destination string) error {
	awsSession, err := session.NewSession()
	if err != nil {
		return err
	}

	s3Client := s3.New(awsSession, aws.NewConfig().WithRegion(region))

	response, err := s3Client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("downloadObject: %s: %w", key, err)
	}
	defer response.Body.Close()

	content, err := ioutil.ReadAll(response.Body)
	if err != nil {
		return err
	}

	return ioutil.WriteFile(destination, content, 0644)
}

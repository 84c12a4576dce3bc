// Package archive ships finished project files to S3 and fetches them back.
// the analysis cluster and the beamline don't share a filesystem, so the
// bucket is the exchange point.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"log"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/function61/gokit/logex"
	"github.com/jpillora/backoff"
)

const uploadAttempts = 5

type Archive struct {
	bucket   string
	s3Client *s3.S3
	logl     *logex.Leveled
}

func New(bucket string, region string, logger *log.Logger) (*Archive, error) {
	awsSession, err := session.NewSession()
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}

	return &Archive{
		bucket:   bucket,
		s3Client: s3.New(awsSession, aws.NewConfig().WithRegion(region)),
		logl:     logex.Levels(logex.Prefix("archive", logger)),
	}, nil
}

// projects/IPTS-22731/HB2B_1060.h5
func projectKey(ipts int, runNumber int) string {
	return fmt.Sprintf("projects/IPTS-%d/HB2B_%d.h5", ipts, runNumber)
}

// uploads with retry: the beamline network drops out routinely, so transient
// failures back off instead of failing the pipeline
func (a *Archive) UploadProject(ctx context.Context, ipts int, runNumber int, path string) (string, error) {
	content, err := ioutil.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("UploadProject: %w", err)
	}

	key := projectKey(ipts, runNumber)

	retry := &backoff.Backoff{Min: 500 * time.Millisecond, Max: 30 * time.Second}

	var lastErr error
	for attempt := 1; attempt <= uploadAttempts; attempt++ {
		_, lastErr = a.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
			Bucket: &a.bucket,
			Key:    &key,
			Body:   bytes.NewReader(content),
		})
		if lastErr == nil {
			a.logl.Info.Printf("uploaded %s (%d bytes, attempt %d)", key, len(content), attempt)
			return key, nil
		}

		a.logl.Error.Printf("attempt %d for %s: %v", attempt, key, lastErr)

		select {
		case <-time.After(retry.Duration()):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	return "", fmt.Errorf("UploadProject: %s after %d attempts: %w", key, uploadAttempts, lastErr)
}

func (a *Archive) DownloadProject(ctx context.Context, ipts int, runNumber int, destination string) error {
	key := projectKey(ipts, runNumber)

	response, err := a.s3Client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: &a.bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("DownloadProject: %s: %w", key, err)
	}
	defer response.Body.Close()

	content, err := ioutil.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("DownloadProject: %s: %w", key, err)
	}

	if err := ioutil.WriteFile(destination, content, 0644); err != nil {
		return fmt.Errorf("DownloadProject: %w", err)
	}

	a.logl.Info.Printf("downloaded %s to %s", key, destination)

	return nil
}

// best-effort existence probe, used before re-reducing a run from scratch
func (a *Archive) HasProject(ctx context.Context, ipts int, runNumber int) bool {
	key := projectKey(ipts, runNumber)

	_, err := a.s3Client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: &a.bucket,
		Key:    &key,
	})

	return err == nil
}

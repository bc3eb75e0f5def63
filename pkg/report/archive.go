package report

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/Sternrassler/zip-ingest/pkg/ingest"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// keyTimeFormat names archived reports by run start.
const keyTimeFormat = "20060102T150405Z"

// PutObjectAPI is the subset of the S3 client used by S3Archiver.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config configures report archival.
type S3Config struct {
	Bucket string
	Prefix string

	// Region falls back to the AWS default chain when empty.
	Region string

	// Endpoint targets an S3-compatible service such as MinIO.
	Endpoint     string
	UsePathStyle bool
}

// S3Archiver uploads run reports to S3.
type S3Archiver struct {
	client PutObjectAPI
	bucket string
	prefix string
}

// NewS3Archiver creates an archiver using the default AWS credential chain.
func NewS3Archiver(ctx context.Context, cfg S3Config) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewS3ArchiverWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewS3ArchiverWithClient creates an archiver on an existing client.
func NewS3ArchiverWithClient(client PutObjectAPI, bucket, prefix string) *S3Archiver {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Archiver{client: client, bucket: bucket, prefix: prefix}
}

// Key returns the object key for a report.
func (a *S3Archiver) Key(r *ingest.RunReport) string {
	return a.prefix + r.IngestionStart.UTC().Format(keyTimeFormat) + ".json"
}

// Archive uploads the JSON report and returns its object key.
func (a *S3Archiver) Archive(ctx context.Context, r *ingest.RunReport) (string, error) {
	data, err := Marshal(r)
	if err != nil {
		return "", err
	}

	key := a.Key(r)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload report to S3: %w", err)
	}

	log.Info().
		Str("component", "report").
		Str("bucket", a.bucket).
		Str("key", key).
		Int("bytes", len(data)).
		Msg("Archived run report")
	return key, nil
}

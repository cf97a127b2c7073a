package store

import (
	"bytes"
	"context"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rotisserie/eris"
)

// putObjectAPI is the slice of the S3 client the archive needs
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ArchiveOptions locate the bucket report documents are written to
type ArchiveOptions struct {
	Bucket       string
	Prefix       string
	Region       string
	Endpoint     string // custom endpoint, e.g. MinIO or LocalStack
	UsePathStyle bool
}

// S3Archive stores report JSON documents in S3
type S3Archive struct {
	client putObjectAPI
	bucket string
	prefix string
}

// NewS3Archive builds an archive using the default AWS credential chain
func NewS3Archive(ctx context.Context, opts ArchiveOptions) (*S3Archive, error) {
	if opts.Bucket == "" {
		return nil, eris.New("archive: bucket is required")
	}

	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, eris.Wrap(err, "archive: load aws config")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})
	return NewS3ArchiveWithClient(client, opts.Bucket, opts.Prefix), nil
}

// NewS3ArchiveWithClient wraps an existing client
func NewS3ArchiveWithClient(client putObjectAPI, bucket, prefix string) *S3Archive {
	return &S3Archive{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Key returns the object key of a run's report
func (a *S3Archive) Key(runID string) string {
	return path.Join(a.prefix, runID+".json")
}

// PutReport uploads a report document and returns its object key
func (a *S3Archive) PutReport(ctx context.Context, runID string, body []byte) (string, error) {
	if runID == "" {
		return "", eris.New("archive: empty run id")
	}
	key := a.Key(runID)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return key, eris.Wrapf(err, "archive: put s3://%s/%s", a.bucket, key)
	}
	return key, nil
}

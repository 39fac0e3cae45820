package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/ruteri/telemetry-envelope/interfaces"
)

// S3Backend archives content in an S3 or S3-compatible bucket. Objects are
// private; keys are <prefix>/<content type>/<content id>.
type S3Backend struct {
	client      *s3.S3
	bucketName  string
	prefix      string
	log         *slog.Logger
	locationURI string
}

// S3Options configures NewS3Backend.
type S3Options struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
	// AccessKey and SecretKey override the SDK credential chain.
	AccessKey string
	SecretKey string
	// PathStyle addresses the bucket in the path, as MinIO expects.
	PathStyle bool
}

// NewS3Backend creates an S3 backend. Without static keys the SDK default
// credential chain (environment, shared config, instance role) applies.
func NewS3Backend(opts S3Options, log *slog.Logger) (*S3Backend, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("%w: s3 bucket name is empty", interfaces.ErrInvalidLocationURI)
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}

	uri := fmt.Sprintf("s3://%s/%s?region=%s", opts.Bucket, opts.Prefix, opts.Region)
	if opts.Endpoint != "" {
		uri += fmt.Sprintf("&endpoint=%s", opts.Endpoint)
	}

	cfg := aws.Config{
		Region:           aws.String(opts.Region),
		S3ForcePathStyle: aws.Bool(opts.PathStyle),
	}
	if opts.Endpoint != "" {
		cfg.Endpoint = aws.String(opts.Endpoint)
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		cfg.Credentials = credentials.NewStaticCredentials(opts.AccessKey, opts.SecretKey, "")
	}

	sess, err := session.NewSession(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &S3Backend{
		client:      s3.New(sess),
		bucketName:  opts.Bucket,
		prefix:      strings.Trim(opts.Prefix, "/"),
		log:         log,
		locationURI: uri,
	}, nil
}

// Fetch returns ErrContentNotFound when the object does not exist.
func (b *S3Backend) Fetch(ctx context.Context, id interfaces.ContentID, contentType interfaces.ContentType) ([]byte, error) {
	start := time.Now()
	key := b.getObjectKey(id, contentType)

	result, err := b.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			b.log.Debug("Content not found in S3",
				slog.String("content_id", id.Short()),
				slog.String("key", key))
			return nil, interfaces.ErrContentNotFound
		}

		b.log.Error("Failed to get object from S3",
			slog.String("content_id", id.Short()),
			slog.String("bucket", b.bucketName),
			slog.String("key", key),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}

	b.log.Debug("Fetched content from S3",
		slog.String("content_id", id.Short()),
		slog.String("key", key),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

// Store uploads data under its content ID.
func (b *S3Backend) Store(ctx context.Context, data []byte, contentType interfaces.ContentType) (interfaces.ContentID, error) {
	id := interfaces.ComputeID(data)
	key := b.getObjectKey(id, contentType)

	_, err := b.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mediaType(contentType)),
	})
	if err != nil {
		return id, fmt.Errorf("failed to upload object to S3: %w", err)
	}

	b.log.Debug("Stored content in S3",
		slog.String("bucket", b.bucketName),
		slog.String("key", key),
		slog.String("content_id", id.Short()))

	return id, nil
}

// Available heads the bucket.
func (b *S3Backend) Available(ctx context.Context) bool {
	_, err := b.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucketName),
	})
	if err != nil {
		b.log.Warn("S3 backend unavailable",
			slog.String("bucket", b.bucketName),
			"err", err)
		return false
	}
	return true
}

func (b *S3Backend) Name() string {
	return fmt.Sprintf("s3-%s", b.bucketName)
}

func (b *S3Backend) LocationURI() string {
	return b.locationURI
}

func (b *S3Backend) getObjectKey(id interfaces.ContentID, contentType interfaces.ContentType) string {
	return path.Join(b.prefix, contentType.String(), id.String())
}

func isNotFound(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	var rerr awserr.RequestFailure
	return errors.As(err, &rerr) && rerr.StatusCode() == 404
}

func mediaType(contentType interfaces.ContentType) string {
	if contentType == interfaces.ReportType {
		return "application/json"
	}
	return "application/octet-stream"
}

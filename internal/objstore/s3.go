package objstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/openobserve/corelake/internal/errs"
)

// S3Config mirrors the teacher's S3TargetConfig (pkg/archive/parquet/target.go).
type S3Config struct {
	Endpoint     string
	Bucket       string
	AccessKey    string
	SecretKey    string
	Region       string
	UsePathStyle bool
}

// S3Target writes/reads/deletes objects in an S3-compatible bucket.
// Construction is lifted near-verbatim from the teacher's NewS3Target.
type S3Target struct {
	client *s3.Client
	bucket string
}

func NewS3Target(ctx context.Context, cfg S3Config) (*S3Target, error) {
	if cfg.Bucket == "" {
		return nil, errs.New(errs.BadRequest, "objstore: empty S3 bucket name")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "objstore: load AWS config")
	}

	opts := func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}

	return &S3Target{client: s3.NewFromConfig(awsCfg, opts), bucket: cfg.Bucket}, nil
}

func (t *S3Target) Put(ctx context.Context, key string, data []byte) error {
	_, err := t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(t.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return errs.Wrap(errs.Unavailable, err, "objstore: put object %q", key)
	}
	return nil
}

func (t *S3Target) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := t.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classifyS3Error(err, key)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (t *S3Target) GetRange(ctx context.Context, key string, offset, length int64) ([]byte, error) {
	out, err := t.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)),
	})
	if err != nil {
		return nil, classifyS3Error(err, key)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (t *S3Target) Delete(ctx context.Context, key string) error {
	_, err := t.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errs.Wrap(errs.Unavailable, err, "objstore: delete object %q", key)
	}
	return nil
}

func (t *S3Target) Exists(ctx context.Context, key string) (bool, error) {
	_, err := t.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var notFound *s3types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, errs.Wrap(errs.Unavailable, err, "objstore: head object %q", key)
}

func classifyS3Error(err error, key string) error {
	var noSuchKey *s3types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return errs.Wrap(errs.BadRequest, err, "objstore: object %q not found", key)
	}
	return errs.Wrap(errs.Unavailable, err, "objstore: object %q", key)
}

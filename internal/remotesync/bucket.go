// Package remotesync ingests submissions dropped into a remote bucket.
//
// A poll lists the bucket, skips objects whose ETag matches the processed
// record, and hands each new or changed object to an ingest callback in key
// order. The record is saved after every successful ingestion, so a crash
// loses at most the object in flight.
package remotesync

import (
	"context"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/JonMunkholm/catalogsync/internal/diag"
)

// Object describes one stored submission.
type Object struct {
	Key          string
	ETag         string
	Size         int64
	LastModified time.Time
}

// Bucket is the narrow remote storage contract the poller needs.
type Bucket interface {
	List(ctx context.Context, prefix string) ([]Object, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// BucketConfig locates an S3-compatible bucket.
type BucketConfig struct {
	Name            string
	Region          string
	Endpoint        string // empty for AWS; set for R2, MinIO and the like
	AccessKeyID     string
	SecretAccessKey string
}

// S3Bucket implements Bucket with the AWS SDK.
type S3Bucket struct {
	name   string
	client *s3.Client
}

// NewS3Bucket builds a client from cfg. Static keys, when given, override
// the default credential chain.
func NewS3Bucket(ctx context.Context, cfg BucketConfig) (*S3Bucket, error) {
	if cfg.Name == "" {
		return nil, diag.New(diag.RemoteError, "missing bucket name")
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	opts := []func(*awscfg.LoadOptions) error{awscfg.WithRegion(region)}
	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" {
		opts = append(opts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, diag.Wrap(diag.RemoteError, err, "load bucket credentials")
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &S3Bucket{name: cfg.Name, client: client}, nil
}

// List returns every object under prefix, following pagination.
func (b *S3Bucket) List(ctx context.Context, prefix string) ([]Object, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(b.name)}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}
	var out []Object
	pages := s3.NewListObjectsV2Paginator(b.client, input)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, diag.Wrap(diag.RemoteError, err, "list objects in %s", b.name)
		}
		for _, o := range page.Contents {
			obj := Object{
				Key:  aws.ToString(o.Key),
				ETag: aws.ToString(o.ETag),
				Size: aws.ToInt64(o.Size),
			}
			if o.LastModified != nil {
				obj.LastModified = *o.LastModified
			}
			out = append(out, obj)
		}
	}
	return out, nil
}

// Get opens the object at key. The caller closes the reader.
func (b *S3Bucket) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, diag.Wrap(diag.RemoteError, err, "get object %s", key)
	}
	return resp.Body, nil
}

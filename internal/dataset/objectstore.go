package dataset

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/KaramelBytes/seascope/internal/errs"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"google.golang.org/api/option"
)

// S3API is the subset of the S3 client used for reading objects.
type S3API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads s3://bucket/key objects. The client is created on first use
// from the default AWS credential chain unless one is supplied.
type S3Source struct {
	region string

	once   sync.Once
	client S3API
	err    error
}

// NewS3Source returns a lazily-initialized S3 source.
func NewS3Source(region string) *S3Source { return &S3Source{region: region} }

// NewS3SourceWithClient returns an S3 source backed by client.
func NewS3SourceWithClient(client S3API) *S3Source {
	s := &S3Source{client: client}
	s.once.Do(func() {})
	return s
}

func (s *S3Source) CanOpen(location string) bool { return strings.HasPrefix(location, "s3://") }

func (s *S3Source) api(ctx context.Context) (S3API, error) {
	s.once.Do(func() {
		var opts []func(*awsconfig.LoadOptions) error
		if s.region != "" {
			opts = append(opts, awsconfig.WithRegion(s.region))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			s.err = fmt.Errorf("load aws config: %w", err)
			return
		}
		s.client = s3.NewFromConfig(cfg)
	})
	return s.client, s.err
}

// Stat returns the object's ETag.
func (s *S3Source) Stat(ctx context.Context, location string) (string, error) {
	bucket, key, err := splitBucketPath(location, "s3")
	if err != nil {
		return "", errs.Wrap(err, errs.SourceUnavailable, errs.StageLoad, "parse location")
	}
	api, err := s.api(ctx)
	if err != nil {
		return "", errs.Wrap(err, errs.SourceUnavailable, errs.StageLoad, "s3 client")
	}
	out, err := api.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return "", errs.Wrap(err, errs.SourceUnavailable, errs.StageLoad, "head "+location)
	}
	sig := aws.ToString(out.ETag)
	if sig == "" && out.LastModified != nil {
		sig = out.LastModified.UTC().String()
	}
	return sig, nil
}

func (s *S3Source) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	bucket, key, err := splitBucketPath(location, "s3")
	if err != nil {
		return nil, errs.Wrap(err, errs.SourceUnavailable, errs.StageLoad, "parse location")
	}
	api, err := s.api(ctx)
	if err != nil {
		return nil, errs.Wrap(err, errs.SourceUnavailable, errs.StageLoad, "s3 client")
	}
	out, err := api.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return nil, errs.Wrap(err, errs.SourceUnavailable, errs.StageLoad, "get "+location)
	}
	return out.Body, nil
}

// GCSSource reads gs://bucket/object objects.
type GCSSource struct {
	endpoint string

	once   sync.Once
	client *storage.Client
	err    error
}

// NewGCSSource returns a lazily-initialized GCS source. A non-empty endpoint
// targets an emulator without authentication.
func NewGCSSource(endpoint string) *GCSSource { return &GCSSource{endpoint: endpoint} }

func (g *GCSSource) CanOpen(location string) bool { return strings.HasPrefix(location, "gs://") }

func (g *GCSSource) bucketClient(ctx context.Context) (*storage.Client, error) {
	g.once.Do(func() {
		var opts []option.ClientOption
		if g.endpoint != "" {
			opts = append(opts, option.WithEndpoint(g.endpoint), option.WithoutAuthentication())
		}
		g.client, g.err = storage.NewClient(ctx, opts...)
	})
	return g.client, g.err
}

func (g *GCSSource) object(ctx context.Context, location string) (*storage.ObjectHandle, error) {
	bucket, name, err := splitBucketPath(location, "gs")
	if err != nil {
		return nil, errs.Wrap(err, errs.SourceUnavailable, errs.StageLoad, "parse location")
	}
	client, err := g.bucketClient(ctx)
	if err != nil {
		return nil, errs.Wrap(err, errs.SourceUnavailable, errs.StageLoad, "gcs client")
	}
	return client.Bucket(bucket).Object(name), nil
}

// Stat returns the object generation and metageneration.
func (g *GCSSource) Stat(ctx context.Context, location string) (string, error) {
	obj, err := g.object(ctx, location)
	if err != nil {
		return "", err
	}
	attrs, err := obj.Attrs(ctx)
	if err != nil {
		return "", errs.Wrap(err, errs.SourceUnavailable, errs.StageLoad, "attrs "+location)
	}
	return fmt.Sprintf("%d.%d", attrs.Generation, attrs.Metageneration), nil
}

func (g *GCSSource) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	obj, err := g.object(ctx, location)
	if err != nil {
		return nil, err
	}
	// keep stored bytes; decompression is handled by the registry
	r, err := obj.ReadCompressed(true).NewReader(ctx)
	if err != nil {
		return nil, errs.Wrap(err, errs.SourceUnavailable, errs.StageLoad, "read "+location)
	}
	return r, nil
}

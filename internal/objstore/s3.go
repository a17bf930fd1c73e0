package objstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/alitto/pond/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/malbeclabs/songlake/pkg/engine"
)

const (
	// DeleteObjects accepts at most 1000 keys per request.
	deleteBatchSize = 1000

	defaultDeleteConcurrency = 8
)

// S3API is the subset of the S3 client the store uses.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// S3 is a Store over an S3-compatible bucket.
type S3 struct {
	log    *slog.Logger
	client S3API
	pool   pond.Pool
}

// NewS3 builds an S3 client from the engine's S3 configuration. Explicit
// credentials are used when present, otherwise the default AWS chain.
func NewS3(ctx context.Context, log *slog.Logger, cfg *engine.S3Config) (*S3, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		endpointURL := cfg.Endpoint
		if !strings.HasPrefix(endpointURL, "http://") && !strings.HasPrefix(endpointURL, "https://") {
			scheme := "https://"
			if !cfg.UseSSL {
				scheme = "http://"
			}
			endpointURL = scheme + endpointURL
		}
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = &endpointURL
			o.UsePathStyle = true // Required for MinIO and similar services
		})
		log.Info("using custom S3 endpoint", "endpoint", endpointURL)
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return NewS3WithClient(log, client, defaultDeleteConcurrency), nil
}

// NewS3WithClient wraps an existing client. concurrency bounds parallel
// DeleteObjects calls.
func NewS3WithClient(log *slog.Logger, client S3API, concurrency int) *S3 {
	if concurrency <= 0 {
		concurrency = defaultDeleteConcurrency
	}
	return &S3{
		log:    log,
		client: client,
		pool:   pond.NewPool(concurrency),
	}
}

// dirPrefix turns the key part of a URI into a listing prefix that only
// matches objects inside that directory ("songs" must not match "songs_v2").
func dirPrefix(key string) string {
	if key == "" || strings.HasSuffix(key, "/") {
		return key
	}
	return key + "/"
}

func (s *S3) List(ctx context.Context, uri string) ([]Object, error) {
	bucket, key, err := engine.SplitS3URI(uri)
	if err != nil {
		return nil, err
	}

	var objects []Object
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(dirPrefix(key)),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list s3://%s/%s: %w", bucket, key, err)
		}
		for _, obj := range page.Contents {
			objects = append(objects, Object{
				URI:  fmt.Sprintf("s3://%s/%s", bucket, aws.ToString(obj.Key)),
				Size: aws.ToInt64(obj.Size),
			})
		}
	}
	return objects, nil
}

// DeletePrefix removes every object under the URI's directory prefix.
// Keys are deleted in batches of 1000 spread over the store's worker pool.
func (s *S3) DeletePrefix(ctx context.Context, uri string) (int, error) {
	bucket, key, err := engine.SplitS3URI(uri)
	if err != nil {
		return 0, err
	}
	if key == "" {
		return 0, fmt.Errorf("refusing to delete the whole bucket %s", bucket)
	}

	objects, err := s.List(ctx, uri)
	if err != nil {
		return 0, err
	}
	if len(objects) == 0 {
		return 0, nil
	}

	ids := make([]types.ObjectIdentifier, 0, len(objects))
	for _, obj := range objects {
		_, objKey, err := engine.SplitS3URI(obj.URI)
		if err != nil {
			return 0, err
		}
		ids = append(ids, types.ObjectIdentifier{Key: aws.String(objKey)})
	}

	var deleted atomic.Int64
	group := s.pool.NewGroupContext(ctx)
	groupCtx := group.Context()
	for start := 0; start < len(ids); start += deleteBatchSize {
		batch := ids[start:min(start+deleteBatchSize, len(ids))]

		group.SubmitErr(func() error {
			out, err := s.client.DeleteObjects(groupCtx, &s3.DeleteObjectsInput{
				Bucket: aws.String(bucket),
				Delete: &types.Delete{
					Objects: batch,
					Quiet:   aws.Bool(true),
				},
			})
			if err != nil {
				return fmt.Errorf("failed to delete objects in s3://%s: %w", bucket, err)
			}
			if len(out.Errors) > 0 {
				var errs []error
				for _, e := range out.Errors {
					errs = append(errs, fmt.Errorf("%s: %s", aws.ToString(e.Key), aws.ToString(e.Message)))
				}
				return fmt.Errorf("failed to delete %d objects in s3://%s: %w", len(out.Errors), bucket, errors.Join(errs...))
			}
			deleted.Add(int64(len(batch)))
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return int(deleted.Load()), err
	}

	s.log.Debug("objstore: deleted prefix", "bucket", bucket, "prefix", dirPrefix(key), "objects", deleted.Load())
	return int(deleted.Load()), nil
}

// Close stops the delete worker pool.
func (s *S3) Close() {
	s.pool.StopAndWait()
}

// EnsureBucket creates the bucket when the endpoint is a localhost MinIO and
// the bucket does not exist yet. It is a no-op against AWS.
func (s *S3) EnsureBucket(ctx context.Context, cfg *engine.S3Config, uri string) error {
	if !cfg.IsMinIO() {
		return nil
	}

	endpoint := strings.TrimPrefix(cfg.Endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")
	if !strings.HasPrefix(endpoint, "localhost") && !strings.HasPrefix(endpoint, "127.0.0.1") && !strings.Contains(endpoint, "host.docker.internal") {
		return nil
	}

	bucket, _, err := engine.SplitS3URI(uri)
	if err != nil {
		return err
	}

	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err == nil {
		return nil
	}

	s.log.Info("creating MinIO bucket", "bucket", bucket, "endpoint", cfg.Endpoint)
	if _, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return nil
}

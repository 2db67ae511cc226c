package repository

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	appconfig "github.com/my591234-max/autolabeling/internal/config"
)

// S3Repository is the bucket used as a source of images to annotate and as
// a destination for exported annotation bundles.
type S3Repository interface {
	UploadFile(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	DownloadFile(ctx context.Context, key string) (io.ReadCloser, error)
	ListFiles(ctx context.Context, prefix string) ([]string, error)
	DeleteFile(ctx context.Context, key string) error
}

type s3Repository struct {
	client *s3.Client
	bucket string
	region string
	log    *zap.Logger
}

func NewS3Repository(ctx context.Context, cfg *appconfig.S3Config, log *zap.Logger) (S3Repository, error) {
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("s3 bucket name is empty")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	// MinIO and other S3-compatible stores need path-style addressing.
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})

	repo := &s3Repository{
		client: client,
		bucket: cfg.BucketName,
		region: cfg.Region,
		log:    log.With(zap.String("bucket", cfg.BucketName)),
	}

	if err := repo.ensureBucket(ctx); err != nil {
		repo.log.Warn("Annotation bucket is not available yet", zap.Error(err))
	}

	return repo, nil
}

func (r *s3Repository) ensureBucket(ctx context.Context) error {
	if _, err := r.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(r.bucket)}); err == nil {
		r.log.Debug("Annotation bucket found")
		return nil
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(r.bucket)}
	// us-east-1 rejects an explicit location constraint.
	if r.region != "" && r.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(r.region),
		}
	}
	if _, err := r.client.CreateBucket(ctx, input); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}

	r.log.Info("Annotation bucket created")
	return nil
}

func (r *s3Repository) UploadFile(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if _, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	}); err != nil {
		r.log.Error("Failed to upload annotation file", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("put object %q: %w", key, err)
	}

	r.log.Debug("Annotation file uploaded", zap.String("key", key), zap.Int64("size", size))
	return nil
}

func (r *s3Repository) DownloadFile(ctx context.Context, key string) (io.ReadCloser, error) {
	output, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		r.log.Error("Failed to fetch source image", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("get object %q: %w", key, err)
	}
	return output.Body, nil
}

// ListFiles returns the object keys under prefix, skipping folder markers.
func (r *s3Repository) ListFiles(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects under %q: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			keys = append(keys, key)
		}
	}

	r.log.Debug("Listed objects", zap.String("prefix", prefix), zap.Int("count", len(keys)))
	return keys, nil
}

func (r *s3Repository) DeleteFile(ctx context.Context, key string) error {
	if _, err := r.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	}); err != nil {
		r.log.Error("Failed to delete annotation file", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("delete object %q: %w", key, err)
	}
	return nil
}

package s3

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"firmdocs/internal/config"
	"firmdocs/internal/port"
)

// api is the subset of the S3 client the store needs.
type api interface {
	manager.UploadAPIClient
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type s3Store struct {
	client   api
	uploader *manager.Uploader
	bucket   string
}

// NewS3Store creates an ObjectStorage writing document bytes to one S3 bucket.
func NewS3Store(ctx context.Context, cfg *config.StorageConfig) (port.ObjectStorage, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}
	return NewWithClient(s3.NewFromConfig(awsCfg, s3Opts...), cfg.Bucket), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client api, bucket string) port.ObjectStorage {
	return &s3Store{client: client, uploader: manager.NewUploader(client), bucket: bucket}
}

func (c *s3Store) Put(ctx context.Context, input port.PutInput) (*port.PutOutput, error) {
	result, err := c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(input.Key),
		Body:        input.Body,
		ContentType: aws.String(input.ContentType),
		Metadata:    input.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 put: %w", err)
	}
	return &port.PutOutput{Location: result.Location, ETag: aws.ToString(result.ETag)}, nil
}

func (c *s3Store) Delete(ctx context.Context, key string) error {
	if _, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("s3 delete: %w", err)
	}
	return nil
}

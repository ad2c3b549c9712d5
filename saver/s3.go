package saver

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config configures an S3Saver, the same key shape
// sync_service.go's S3 sync path reads out of its settings map.
type S3Config struct {
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Prefix    string
}

// S3Saver uploads subtitle content as an S3 object, grounded on
// sync_service.go's PutObject upload loop but narrowed to a single
// object per call instead of a directory walk.
type S3Saver struct {
	bucket string
	prefix string
	client *s3.Client
}

// NewS3Saver builds an S3 client from static credentials and returns a
// Saver bound to cfg.Bucket.
func NewS3Saver(cfg S3Config) (*S3Saver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("saver: s3 bucket not specified")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: cfg.AccessKey, SecretAccessKey: cfg.SecretKey}, nil
		})),
	)
	if err != nil {
		return nil, fmt.Errorf("saver: create aws config: %w", err)
	}

	return &S3Saver{
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		client: s3.NewFromConfig(awsCfg),
	}, nil
}

func (s *S3Saver) key(p string) string {
	if s.prefix == "" {
		return p
	}
	return path.Join(s.prefix, p)
}

func (s *S3Saver) Save(ctx context.Context, p string, content []byte) error {
	key := s.key(p)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(content),
	})
	if err != nil {
		return fmt.Errorf("saver: upload %s to s3: %w", key, err)
	}
	return nil
}

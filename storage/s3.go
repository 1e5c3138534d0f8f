package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/RyanBlaney/voxprep/logging"
)

// S3Config holds the configuration for publishing to S3
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: S3-compatible endpoint, switches to path-style addressing
	Prefix          string // Optional: key prefix
	AccessKeyID     string // Optional: static credentials
	SecretAccessKey string
}

// Enabled reports whether a bucket is configured
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// ObjectPutter is the part of the S3 client the publisher needs
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Publisher uploads generated artifacts to a bucket
type Publisher struct {
	client ObjectPutter
	config S3Config
	logger logging.Logger
}

// NewS3Publisher builds an S3 client from cfg. Static credentials are used
// when both keys are set, the default AWS chain otherwise.
func NewS3Publisher(ctx context.Context, cfg S3Config) (*Publisher, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("s3 bucket not configured")
	}

	var configOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		configOpts = append(configOpts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return NewPublisher(s3.NewFromConfig(awsCfg, clientOpts...), cfg), nil
}

// NewPublisher wraps an existing client
func NewPublisher(client ObjectPutter, cfg S3Config) *Publisher {
	return &Publisher{
		client: client,
		config: cfg,
		logger: logging.WithFields(logging.Fields{
			"component": "s3_publisher",
			"bucket":    cfg.Bucket,
		}),
	}
}

// Key returns the object key of a local file: the prefix joined with its base name
func (p *Publisher) Key(localPath string) string {
	return path.Join(strings.Trim(p.config.Prefix, "/"), filepath.Base(localPath))
}

// URL returns the address of key
func (p *Publisher) URL(key string) string {
	if p.config.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(p.config.Endpoint, "/"), p.config.Bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", p.config.Bucket, p.config.Region, key)
}

// Publish uploads the file at localPath and returns its URL
func (p *Publisher) Publish(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	key := p.Key(localPath)
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.config.Bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s to S3: %w", localPath, err)
	}

	url := p.URL(key)
	p.logger.Info("Published artifact", logging.Fields{
		"key":   key,
		"bytes": info.Size(),
		"url":   url,
	})
	return url, nil
}

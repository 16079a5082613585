package s3archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"

	"github.com/pulseboard/pulseboard/internal/pkg/providers"
)

// Client writes fetched metrics payloads to an S3 bucket. It satisfies the
// sync engine's PayloadArchiver; archive failures are reported to the caller
// but the caller treats them as best-effort.
type Client struct {
	s3Client *s3.Client
	config   *Config
}

// NewClient creates an archive client. Returns an error when the archive is
// disabled so callers can fall back to running without one.
func NewClient(cfg *Config) (*Client, error) {
	if !cfg.IsEnabled() {
		return nil, fmt.Errorf("metrics archive is disabled")
	}

	awsConfig, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			// S3-compatible services need path-style URLs.
			o.UsePathStyle = true
			o.UseAccelerate = false
		}
	})

	client := &Client{
		s3Client: s3Client,
		config:   cfg,
	}

	if err := client.testConnection(); err != nil {
		return nil, fmt.Errorf("failed to connect to S3: %w", err)
	}

	log.Infof("[S3Archive] Successfully initialized S3 client for bucket: %s", cfg.BucketName)
	return client, nil
}

// testConnection checks that the configured bucket is reachable.
func (c *Client) testConnection() error {
	_, err := c.s3Client.HeadBucket(context.Background(), &s3.HeadBucketInput{
		Bucket: aws.String(c.config.BucketName),
	})
	if err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", c.config.BucketName, err)
	}
	return nil
}

type archiveDocument struct {
	StartupID  uint                       `json:"startup_id"`
	Provider   string                     `json:"provider"`
	ArchivedAt time.Time                  `json:"archived_at"`
	Metrics    *providers.StandardMetrics `json:"metrics"`
}

// ArchiveMetrics stores one fetched metrics payload under a dated key.
func (c *Client) ArchiveMetrics(ctx context.Context, startupID uint, provider string, metrics *providers.StandardMetrics) error {
	now := time.Now().UTC()
	doc := archiveDocument{
		StartupID:  startupID,
		Provider:   provider,
		ArchivedAt: now,
		Metrics:    metrics,
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling archive document: %w", err)
	}

	key := c.config.ObjectKey(startupID, provider, now)
	_, err = c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.config.BucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(body))),
		Metadata: map[string]string{
			"upload-source": "pulseboard-metricsync",
		},
	})
	if err != nil {
		return fmt.Errorf("uploading archive object %s: %w", key, err)
	}

	log.Debugf("[S3Archive] archived metrics payload at s3://%s/%s", c.config.BucketName, key)
	return nil
}

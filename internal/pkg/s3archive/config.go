package s3archive

import (
	"errors"
	"fmt"
	"time"

	"github.com/pulseboard/pulseboard/internal/pkg/env"
)

// Config holds the raw-payload archive settings. The archive keeps every
// provider response that produced a metrics snapshot, for audit and replay.
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Enabled         bool
}

// LoadConfig loads the archive configuration from environment variables.
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-west-001"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		Enabled:         env.GetEnv("S3_ARCHIVE_ENABLED", "false") == "true",
	}

	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when the metrics archive is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when the metrics archive is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when the metrics archive is enabled")
		}
	}

	return config, nil
}

// IsEnabled returns true if the metrics archive is enabled.
func (c *Config) IsEnabled() bool {
	return c.Enabled
}

// ObjectKey builds the archive key for one sync result. Keys shard by fetch
// date so a day's payloads can be listed with a single prefix.
func (c *Config) ObjectKey(startupID uint, provider string, at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("metrics/%04d/%02d/%02d/startup-%d-%s-%d.json",
		at.Year(), int(at.Month()), at.Day(), startupID, provider, at.Unix())
}

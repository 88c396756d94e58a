// Package config loads the kr server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

type Config struct {
	DatabaseURL string // RECIPES_DATABASE_URL (required)
	GRPCAddr    string // RECIPES_GRPC_ADDR (default ":9090")
	HTTPAddr    string // RECIPES_HTTP_ADDR (default ":8080")
	NATSURL     string // RECIPES_NATS_URL (optional, empty = no events)
	AuthToken   string // RECIPES_AUTH_TOKEN (optional, empty = auth disabled)

	// Export settings
	SyncInterval   time.Duration // RECIPES_SYNC_INTERVAL (default 0 = disabled)
	SyncS3Bucket   string        // RECIPES_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint string        // RECIPES_SYNC_S3_ENDPOINT (custom endpoint for MinIO)
	SyncS3Region   string        // RECIPES_SYNC_S3_REGION (default "us-east-1")
	SyncS3Key      string        // RECIPES_SYNC_S3_KEY (default "recipes/backup.jsonl")
	SyncGitRepo    string        // RECIPES_SYNC_GIT_REPO (enables git when set; path to clone)
	SyncGitFile    string        // RECIPES_SYNC_GIT_FILE (default "recipes.jsonl")
	SyncGitBranch  string        // RECIPES_SYNC_GIT_BRANCH (default "main")
}

// Load reads the process environment.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads settings through getenv. Every invalid or missing value is
// reported, not just the first.
func LoadFrom(getenv func(string) string) (*Config, error) {
	env := lookup(getenv)
	c := &Config{
		DatabaseURL:    env.str("RECIPES_DATABASE_URL", ""),
		GRPCAddr:       env.str("RECIPES_GRPC_ADDR", ":9090"),
		HTTPAddr:       env.str("RECIPES_HTTP_ADDR", ":8080"),
		NATSURL:        env.str("RECIPES_NATS_URL", ""),
		AuthToken:      env.str("RECIPES_AUTH_TOKEN", ""),
		SyncS3Bucket:   env.str("RECIPES_SYNC_S3_BUCKET", ""),
		SyncS3Endpoint: env.str("RECIPES_SYNC_S3_ENDPOINT", ""),
		SyncS3Region:   env.str("RECIPES_SYNC_S3_REGION", "us-east-1"),
		SyncS3Key:      env.str("RECIPES_SYNC_S3_KEY", "recipes/backup.jsonl"),
		SyncGitRepo:    env.str("RECIPES_SYNC_GIT_REPO", ""),
		SyncGitFile:    env.str("RECIPES_SYNC_GIT_FILE", "recipes.jsonl"),
		SyncGitBranch:  env.str("RECIPES_SYNC_GIT_BRANCH", "main"),
	}

	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("RECIPES_DATABASE_URL is required"))
	}
	d, err := env.duration("RECIPES_SYNC_INTERVAL")
	if err != nil {
		errs = append(errs, err)
	}
	c.SyncInterval = d

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}

// SyncEnabled reports whether periodic export should run: an interval is set
// and at least one destination is configured.
func (c *Config) SyncEnabled() bool {
	return c.SyncInterval > 0 && (c.SyncS3Bucket != "" || c.SyncGitRepo != "")
}

type lookup func(string) string

func (l lookup) str(key, fallback string) string {
	if v := l(key); v != "" {
		return v
	}
	return fallback
}

// duration parses a non-negative Go duration. Unset means zero.
func (l lookup) duration(key string) (time.Duration, error) {
	v := l(key)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative, got %s", key, d)
	}
	return d, nil
}

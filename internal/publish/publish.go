// Package publish uploads finished snapshots to an S3-compatible object
// store.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config configures an Uploader.
type Config struct {
	Endpoint  string // host:port or URL; an https URL enables TLS
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// Enabled reports whether publishing is configured.
func (c Config) Enabled() bool { return c.Endpoint != "" && c.Bucket != "" }

// Uploader copies snapshots to a bucket, once under the run id and once
// under "latest".
type Uploader struct {
	client *minio.Client
	cfg    Config
	logger *slog.Logger
}

// NewUploader returns an Uploader for cfg.
func NewUploader(cfg Config, logger *slog.Logger) (*Uploader, error) {
	if !cfg.Enabled() {
		return nil, errors.New("publish: endpoint and bucket are required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("publish: credentials are required")
	}

	endpoint, secure := cfg.Endpoint, cfg.UseSSL
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		secure = secure || u.Scheme == "https"
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("publish: creating client: %w", err)
	}
	return &Uploader{client: client, cfg: cfg, logger: logger}, nil
}

// Keys returns the object keys a snapshot of run runID is stored under.
func (u *Uploader) Keys(file, runID string) []string {
	name := filepath.Base(file)
	return []string{
		path.Join(u.cfg.Prefix, runID, name),
		path.Join(u.cfg.Prefix, "latest", name),
	}
}

// Publish uploads the file at p.
func (u *Uploader) Publish(ctx context.Context, p, runID string) error {
	start := time.Now()
	opts := minio.PutObjectOptions{
		ContentType:  "application/gzip",
		UserMetadata: map[string]string{"run-id": runID},
	}
	var size int64
	for _, key := range u.Keys(p, runID) {
		info, err := u.client.FPutObject(ctx, u.cfg.Bucket, key, p, opts)
		if err != nil {
			return fmt.Errorf("uploading %s to %s/%s: %w", p, u.cfg.Bucket, key, err)
		}
		size = info.Size
	}
	u.logger.Info("snapshot published",
		"component", "publish",
		"bucket", u.cfg.Bucket,
		"run_id", runID,
		"size", humanize.Bytes(uint64(size)),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

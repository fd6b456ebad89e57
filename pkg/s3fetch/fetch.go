// Package s3fetch downloads CSV sources named by s3:// URIs to local files so
// they can be imported like any other path.
package s3fetch

import (
	"context"
	"fmt"
	"os"
	"path"
	"runtime"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/eunmann/csvload/internal/logctx"
	"github.com/eunmann/csvload/pkg/logging"
)

// DownloaderConfig configures the S3 download manager.
type DownloaderConfig struct {
	// Concurrency is the number of parts fetched in parallel.
	// Default: NumCPU clamped to [4, 16].
	Concurrency int
	// PartSize is the byte size of each ranged GET. Default: 16 MiB.
	PartSize int64
	// TempDir receives downloaded files. Empty means os.TempDir().
	TempDir string
}

// DefaultDownloaderConfig returns defaults based on the current machine.
func DefaultDownloaderConfig() DownloaderConfig {
	concurrency := min(max(runtime.NumCPU(), 4), 16)
	return DownloaderConfig{
		Concurrency: concurrency,
		PartSize:    16 * 1024 * 1024,
	}
}

// Client fetches S3 objects to local temp files.
type Client struct {
	manager *manager.Downloader
	config  DownloaderConfig
}

// NewClient creates a client using the default AWS credential chain.
func NewClient(ctx context.Context, cfg DownloaderConfig) (*Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewClientWithAPI(s3.NewFromConfig(awsCfg), cfg), nil
}

// NewClientWithAPI creates a client over any GetObject implementation.
func NewClientWithAPI(api manager.DownloadAPIClient, cfg DownloaderConfig) *Client {
	def := DefaultDownloaderConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.PartSize <= 0 {
		cfg.PartSize = def.PartSize
	}

	mgr := manager.NewDownloader(api, func(d *manager.Downloader) {
		d.Concurrency = cfg.Concurrency
		d.PartSize = cfg.PartSize
	})
	return &Client{manager: mgr, config: cfg}
}

// Download is a fetched object on local disk.
type Download struct {
	Source   Location
	Path     string
	Bytes    int64
	Duration time.Duration
}

// Remove deletes the local copy.
func (d *Download) Remove() error {
	if err := os.Remove(d.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", d.Path, err)
	}
	return nil
}

// Fetch downloads uri to a new temp file. The local name ends with the
// object's base name so extension-based handling (.gz) still applies.
// The caller owns the file and should call Remove when done.
func (c *Client) Fetch(ctx context.Context, uri string) (*Download, error) {
	loc, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}

	log := logctx.FromContext(ctx)
	start := time.Now()

	f, err := os.CreateTemp(c.config.TempDir, "csvload-*-"+path.Base(loc.Key))
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	n, err := c.manager.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("download %s: %w", loc, err)
	}

	d := &Download{
		Source:   loc,
		Path:     f.Name(),
		Bytes:    n,
		Duration: time.Since(start),
	}

	logging.PhaseComplete(log, "s3_fetch", d.Duration).
		Str("source", loc.String()).
		Str("path", d.Path).
		Bytes("bytes", n).
		Throughput(n).
		Log("source downloaded")

	return d, nil
}

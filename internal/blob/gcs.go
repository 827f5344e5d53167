package blob

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// GCSProvider stores artifacts in a Google Cloud Storage bucket.
// Authentication uses Application Default Credentials.
type GCSProvider struct {
	client *storage.Client
	bucket string
}

// NewGCSProvider initializes the GCS client and verifies bucket access so a
// misconfigured deployment fails at startup, not mid-check.
func NewGCSProvider(ctx context.Context, bucket string) (*GCSProvider, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket name must be set")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("access gcs bucket %q: %w", bucket, err)
	}
	return &GCSProvider{client: client, bucket: bucket}, nil
}

// Put uploads data to the object named ref.
func (p *GCSProvider) Put(ctx context.Context, ref string, data []byte) error {
	wc := p.client.Bucket(p.bucket).Object(ref).NewWriter(ctx)
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return fmt.Errorf("write gcs object %s: %w", ref, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("finalize gcs object %s: %w", ref, err)
	}
	return nil
}

// Get downloads the object named ref.
func (p *GCSProvider) Get(ctx context.Context, ref string) ([]byte, error) {
	rc, err := p.client.Bucket(p.bucket).Object(ref).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open gcs object %s: %w", ref, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read gcs object %s: %w", ref, err)
	}
	return data, nil
}

// Close releases the underlying client.
func (p *GCSProvider) Close() error { return p.client.Close() }

// Package blob persists binary artifacts (screenshot captures) behind a
// provider interface with memory, local filesystem, and GCS backends.
package blob

import "context"

// Provider stores and retrieves binary artifacts by reference.
type Provider interface {
	// Put persists data under ref.
	Put(ctx context.Context, ref string, data []byte) error
	// Get retrieves the artifact stored under ref.
	Get(ctx context.Context, ref string) ([]byte, error)
	Close() error
}

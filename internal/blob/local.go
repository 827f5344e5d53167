package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

var unsafeRefChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// LocalProvider stores artifacts as files under a root directory.
type LocalProvider struct {
	root string
}

// NewLocalProvider creates root if needed and returns a provider over it.
func NewLocalProvider(root string) (*LocalProvider, error) {
	if root == "" {
		return nil, fmt.Errorf("blob root directory must be set")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &LocalProvider{root: root}, nil
}

// Put writes data to a file derived from ref.
func (p *LocalProvider) Put(_ context.Context, ref string, data []byte) error {
	path := p.path(ref)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write blob %s: %w", ref, err)
	}
	return nil
}

// Get reads the artifact stored under ref.
func (p *LocalProvider) Get(_ context.Context, ref string) ([]byte, error) {
	data, err := os.ReadFile(p.path(ref))
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", ref, err)
	}
	return data, nil
}

// Close is a no-op.
func (p *LocalProvider) Close() error { return nil }

func (p *LocalProvider) path(ref string) string {
	return filepath.Join(p.root, unsafeRefChars.ReplaceAllString(ref, "_"))
}

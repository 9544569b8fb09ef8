package clientsync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// TokenCache is the single durable slot holding the external session token
// on the client.
type TokenCache interface {
	// Get returns ErrNoToken when the slot is empty.
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, token string) error
	Delete(ctx context.Context) error
	// CompareAndDelete empties the slot only while it still holds token.
	CompareAndDelete(ctx context.Context, token string) (bool, error)
}

// MemoryCache is an in-process TokenCache.
type MemoryCache struct {
	mu    sync.Mutex
	token string
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) Get(context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" {
		return "", ErrNoToken
	}
	return c.token, nil
}

func (c *MemoryCache) Set(_ context.Context, token string) error {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Delete(context.Context) error {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) CompareAndDelete(_ context.Context, token string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if token == "" || c.token != token {
		return false, nil
	}
	c.token = ""
	return true, nil
}

// FileCache keeps the token in a single file readable only by its owner.
// Writes go through a temp file and rename, so readers see either the old or
// the new token. The mutex serializes access within one process only.
type FileCache struct {
	mu   sync.Mutex
	path string
}

// NewFileCache resolves path to an absolute location and creates its
// directory.
func NewFileCache(path string) (*FileCache, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("token cache: empty path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("token cache: resolve path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o700); err != nil {
		return nil, fmt.Errorf("token cache: create directory: %w", err)
	}
	return &FileCache{path: abs}, nil
}

// Path returns the absolute file location.
func (c *FileCache) Path() string {
	return c.path
}

func (c *FileCache) Get(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.read()
}

func (c *FileCache) Set(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if token == "" {
		return c.Delete(ctx)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.write(token)
}

func (c *FileCache) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remove()
}

func (c *FileCache) CompareAndDelete(ctx context.Context, token string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	current, err := c.read()
	if errors.Is(err, ErrNoToken) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if token == "" || current != token {
		return false, nil
	}
	if err := c.remove(); err != nil {
		return false, err
	}
	return true, nil
}

func (c *FileCache) read() (string, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("token cache: read: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

func (c *FileCache) write(token string) error {
	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".token-*")
	if err != nil {
		return fmt.Errorf("token cache: create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("token cache: chmod: %w", err)
	}
	if _, err := tmp.WriteString(token); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("token cache: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("token cache: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("token cache: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("token cache: replace: %w", err)
	}
	return nil
}

func (c *FileCache) remove() error {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("token cache: delete: %w", err)
	}
	return nil
}

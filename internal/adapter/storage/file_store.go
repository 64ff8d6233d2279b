package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jossmilde/tanklevel2mqtt/internal/core/domain"
	"github.com/jossmilde/tanklevel2mqtt/internal/core/port"
)

// FileStore keeps one file per key below a root directory.
// Put stages every entry in a temporary file before renaming any of them.
type FileStore struct {
	root string
	mu   sync.Mutex
}

func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.root, clean), nil
}

func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
	}
	return data, err
}

func (s *FileStore) Put(ctx context.Context, entries map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[string]string, len(entries))
	cleanup := func() {
		for tmp := range staged {
			_ = os.Remove(tmp)
		}
	}
	for key, value := range entries {
		if err := ctx.Err(); err != nil {
			cleanup()
			return err
		}
		p, err := s.path(key)
		if err != nil {
			cleanup()
			return err
		}
		tmp, err := writeTemp(p, value)
		if err != nil {
			cleanup()
			return fmt.Errorf("stage %s: %w", key, err)
		}
		staged[tmp] = p
	}
	for tmp, p := range staged {
		if err := os.Rename(tmp, p); err != nil {
			cleanup()
			return fmt.Errorf("commit %s: %w", p, err)
		}
		delete(staged, tmp)
	}
	return nil
}

func writeTemp(p string, value []byte) (string, error) {
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "."+filepath.Base(p)+".*")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(value); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func (s *FileStore) Close() error {
	return nil
}

var _ port.KeyValueStore = (*FileStore)(nil)

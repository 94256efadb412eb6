package persistence

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/tapcards/tap/internal/domain/kv"
)

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

type fileStore struct {
	fs  afero.Fs
	dir string
}

// NewFileStore keeps one <key>.json file per key under dir.
func NewFileStore(fs afero.Fs, dir string) (kv.Store, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %q: %w", dir, err)
	}
	return &fileStore{fs: fs, dir: dir}, nil
}

func (s *fileStore) path(key string) string {
	return filepath.Join(s.dir, unsafeKeyChars.ReplaceAllString(key, "_")+".json")
}

func (s *fileStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, kv.ErrKeyNotFound
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// Set writes a temp file then renames it so readers never see a partial blob.
func (s *fileStore) Set(_ context.Context, key string, value []byte) error {
	target := s.path(key)
	tmp := target + "." + uuid.NewString() + ".tmp"

	if err := afero.WriteFile(s.fs, tmp, value, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := s.fs.Rename(tmp, target); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("rename %s: %w", key, err)
	}
	return nil
}

func (s *fileStore) Ping(context.Context) error {
	info, err := s.fs.Stat(s.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	return nil
}

func (s *fileStore) Name() string { return "file" }

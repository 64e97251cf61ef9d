package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	pathpkg "path"

	"github.com/spf13/afero"
)

// LocalStore keeps documents on an afero filesystem.
type LocalStore struct {
	fs      afero.Fs
	bucket  string
	baseURL string
}

// NewLocalStore roots the store at dir on the OS filesystem.
func NewLocalStore(dir, bucket, publicBaseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return NewLocalStoreFs(afero.NewBasePathFs(afero.NewOsFs(), dir), bucket, publicBaseURL), nil
}

func NewLocalStoreFs(fs afero.Fs, bucket, publicBaseURL string) *LocalStore {
	return &LocalStore{fs: fs, bucket: bucket, baseURL: publicBaseURL}
}

// Fs exposes the backing filesystem, e.g. for serving files.
func (s *LocalStore) Fs() afero.Fs { return s.fs }

func (s *LocalStore) Bucket() string { return s.bucket }

func (s *LocalStore) key(p string) string {
	return pathpkg.Join("/", s.bucket, p)
}

func (s *LocalStore) Upload(ctx context.Context, path, _ string, body io.Reader, _ int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := s.key(path)
	if err := s.fs.MkdirAll(pathpkg.Dir(key), 0o750); err != nil {
		return fmt.Errorf("create folder for %s: %w", path, err)
	}

	f, err := s.fs.Create(key)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		_ = s.fs.Remove(key)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func (s *LocalStore) Delete(ctx context.Context, paths ...string) error {
	failed := make(map[string]error)
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			failed[p] = err
			continue
		}
		if err := s.fs.Remove(s.key(p)); err != nil && !os.IsNotExist(err) {
			failed[p] = err
		}
	}
	if len(failed) > 0 {
		return &DeleteError{Failed: failed}
	}
	return nil
}

func (s *LocalStore) PublicURL(path string) string {
	return publicURL(s.baseURL, s.bucket, path)
}

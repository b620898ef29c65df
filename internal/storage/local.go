package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/afero"
)

// LocalStorage keeps objects as files under a base directory.
type LocalStorage struct {
	fs  afero.Fs
	dir string
}

// NewLocalStorage roots a backend at dir inside fsys. Tests pass
// afero.NewMemMapFs().
func NewLocalStorage(fsys afero.Fs, dir string) (*LocalStorage, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("local storage directory is required")
	}
	return &LocalStorage{fs: afero.NewBasePathFs(fsys, dir), dir: dir}, nil
}

// EnsureBucket creates the base directory.
func (l *LocalStorage) EnsureBucket(context.Context) error {
	return l.fs.MkdirAll("/", 0o755)
}

// Put writes the object, replacing any previous content.
func (l *LocalStorage) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	f, err := l.fs.OpenFile(key, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = l.fs.Remove(key)
		return err
	}
	return f.Close()
}

func (l *LocalStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := l.fs.Open(key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	return f, nil
}

func (l *LocalStorage) Delete(_ context.Context, key string) error {
	err := l.fs.Remove(key)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrObjectNotFound
	}
	return err
}

// Bucket returns the base directory.
func (l *LocalStorage) Bucket() string {
	return l.dir
}

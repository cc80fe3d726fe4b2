package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage keeps images in a directory served under /uploads/
type LocalStorage struct {
	Dir string
}

func NewLocalStorage(dir string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalStorage{Dir: dir}, nil
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		filepath.Base(name) == name && !strings.ContainsAny(name, `/\`)
}

// Save writes to a temp file in the same directory and renames it into place
func (s *LocalStorage) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	if !validName(name) {
		return "", ErrInvalidName
	}

	tmp, err := os.CreateTemp(s.Dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.Rename(tmp.Name(), filepath.Join(s.Dir, name)); err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return name, nil
}

func (s *LocalStorage) Delete(ctx context.Context, path string) error {
	if !validName(path) {
		return ErrInvalidName
	}
	err := os.Remove(filepath.Join(s.Dir, path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (s *LocalStorage) URL(path string) string {
	return "/uploads/" + path
}

// ServeHTTP serves a stored image; the request path must be the bare name
func (s *LocalStorage) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Path
	if !validName(name) {
		http.NotFound(w, r)
		return
	}

	full := filepath.Join(s.Dir, name)
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeFile(w, r, full)
}

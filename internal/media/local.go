package media

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

const localPrefix = "preview-"

// LocalStore keeps previews on the local filesystem (typically /tmp) for the
// lifetime of a session.
type LocalStore struct {
	BaseDir   string
	URLPrefix string
}

// NewLocalStore constructs a store that writes to the provided directory.
// If baseDir is empty, a directory below os.TempDir() is used.
func NewLocalStore(baseDir, urlPrefix string) (*LocalStore, error) {
	dir := baseDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "physique-previews")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create local preview dir: %w", err)
	}
	if urlPrefix == "" {
		urlPrefix = "/previews/"
	}
	if !strings.HasSuffix(urlPrefix, "/") {
		urlPrefix += "/"
	}
	return &LocalStore{BaseDir: dir, URLPrefix: urlPrefix}, nil
}

// Put writes the incoming content to a temp file served under URLPrefix.
func (l *LocalStore) Put(_ context.Context, input UploadInput) (Preview, error) {
	if input.Body == nil {
		return Preview{}, fmt.Errorf("preview body is required")
	}

	tmpFile, err := os.CreateTemp(l.BaseDir, localPrefix+"*"+extension(input.Filename, input.ContentType))
	if err != nil {
		return Preview{}, fmt.Errorf("create temp file: %w", err)
	}
	defer tmpFile.Close()

	if _, err := io.Copy(tmpFile, input.Body); err != nil {
		os.Remove(tmpFile.Name())
		return Preview{}, fmt.Errorf("write temp file: %w", err)
	}

	key := filepath.Base(tmpFile.Name())
	return Preview{Key: key, URL: l.URLPrefix + key}, nil
}

// Open returns the preview file for key.
func (l *LocalStore) Open(key string) (*os.File, error) {
	path, err := l.path(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return file, err
}

// Release removes the preview file. Releasing an unknown key is an error.
func (l *LocalStore) Release(_ context.Context, key string) error {
	path, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("release %s: %w", key, ErrNotFound)
		}
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}

func (l *LocalStore) path(key string) (string, error) {
	if !strings.HasPrefix(key, localPrefix) || key != filepath.Base(key) {
		return "", ErrNotFound
	}
	return filepath.Join(l.BaseDir, key), nil
}

func extension(filename, contentType string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" && contentType != "" {
		if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
			ext = exts[0]
		}
	}
	if len(ext) > 10 {
		ext = ext[:10]
	}
	return ext
}

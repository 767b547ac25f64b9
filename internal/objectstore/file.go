package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"vatfiling/internal/logger"
)

// FileStore keeps objects as files in one directory and addresses them as
// baseURL/<name>.
type FileStore struct {
	dir     string
	baseURL string
	log     zerolog.Logger
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir, baseURL string) (*FileStore, error) {
	const op = "NewFileStore"

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%s: failed to create %s: %w", op, dir, err)
	}
	return &FileStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     logger.WithComponent("objectstore"),
	}, nil
}

func (s *FileStore) BaseURL() string {
	return s.baseURL
}

// Put writes data under name, replacing any earlier object, and returns
// its URL.
func (s *FileStore) Put(ctx context.Context, name string, data []byte) (string, error) {
	const op = "Put"

	if err := ctx.Err(); err != nil {
		return "", err
	}
	name, err := objectName(name)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	target := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("%s: failed to create temp file: %w", op, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%s: failed to write %s: %w", op, name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%s: failed to write %s: %w", op, name, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("%s: failed to store %s: %w", op, name, err)
	}

	url := s.baseURL + "/" + name
	s.log.Debug().
		Str("url", url).
		Str("content_type", ContentType(name)).
		Int("bytes", len(data)).
		Msg("Stored object")

	return url, nil
}

// Get reads the object a URL points at.
func (s *FileStore) Get(ctx context.Context, url string) ([]byte, error) {
	const op = "Get"

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := nameFromURL(url, s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w: %s", op, ErrNotFound, url)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read %s: %w", op, url, err)
	}
	return data, nil
}

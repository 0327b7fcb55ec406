package archive

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Suffix is appended to every archive file name.
const Suffix = ".gz"

// FileSink writes gzip-compressed archive files below a root directory.
type FileSink struct {
	root string
}

// NewFileSink constructs a sink rooted at root.
func NewFileSink(root string) (*FileSink, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("archive: root is required")
	}
	return &FileSink{root: root}, nil
}

// Root returns the archive root directory.
func (s *FileSink) Root() string {
	return s.root
}

// WriteArchive writes content to root/path.gz, replacing any previous file.
// The file is written to a temp name and renamed so readers never see a partial archive.
func (s *FileSink) WriteArchive(ctx context.Context, path string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("archive: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".archive-*")
	if err != nil {
		return fmt.Errorf("archive: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	zw := gzip.NewWriter(tmp)
	zw.Name = filepath.Base(path)
	if _, err := zw.Write(content); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("archive: write: %w", err)
	}
	if err := zw.Close(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("archive: gzip close: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("archive: close: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("archive: rename: %w", err)
	}
	return nil
}

// ReadArchive returns the decompressed content stored under path.
func (s *FileSink) ReadArchive(path string) ([]byte, error) {
	target, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("archive: gzip reader: %w", err)
	}
	defer zr.Close()
	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("archive: read: %w", err)
	}
	return data, nil
}

func (s *FileSink) resolve(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("archive: invalid path %q", path)
	}
	return filepath.Join(s.root, clean) + Suffix, nil
}

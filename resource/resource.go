// Package resource loads a requested file into memory.
package resource

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrNotFound covers missing and unreadable files as well as directories.
	ErrNotFound = errors.New("resource not found")

	// ErrOutsideRoot is returned by Confine for paths that leave the working directory.
	ErrOutsideRoot = errors.New("path escapes the working directory")
)

// Resource is a file read in full. It lives for one request only.
type Resource struct {
	Path         string
	Size         int64
	LastModified time.Time
	Content      []byte
}

// Open reads the whole file at path. Nothing is streamed.
func Open(path string) (*Resource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	return &Resource{
		Path:         path,
		Size:         int64(len(content)),
		LastModified: info.ModTime(),
		Content:      content,
	}, nil
}

// Confine rejects absolute paths and paths that climb above the working
// directory once cleaned.
func Confine(path string) (string, error) {
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}

	cleaned := filepath.Clean(path)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return cleaned, nil
}

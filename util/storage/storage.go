// Package storage uploads ticket attachments and resolves their public URLs.
package storage

import (
	"context"
	"path"
	"strings"

	"github.com/pkg/errors"
)

var ErrInvalidPath = errors.New("invalid object path")

// Blob is an object store addressed by slash-separated paths.
type Blob interface {
	Upload(ctx context.Context, objectPath string, data []byte, contentType string) (string, error)
	PublicURL(objectPath string) (string, error)
}

// cleanPath rejects absolute paths and any attempt to climb out of the root.
func cleanPath(p string) (string, error) {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return "", errors.Wrap(ErrInvalidPath, p)
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.Wrap(ErrInvalidPath, p)
	}
	return cleaned, nil
}

package storage

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Disk keeps objects under a local directory and serves them from baseURL.
type Disk struct {
	dir     string
	baseURL string
}

func NewDisk(dir, baseURL string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create upload dir")
	}
	return &Disk{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir is the directory objects are written to.
func (d *Disk) Dir() string {
	return d.dir
}

// FileSystem exposes stored objects for http.FileServer. Directories are
// reported as missing, so object paths cannot be enumerated.
func (d *Disk) FileSystem() http.FileSystem {
	return filesOnly{http.Dir(d.dir)}
}

type filesOnly struct {
	fs http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, os.ErrNotExist
	}
	return file, nil
}

func (d *Disk) Upload(ctx context.Context, objectPath string, data []byte, contentType string) (string, error) {
	p, err := cleanPath(objectPath)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	full := filepath.Join(d.dir, filepath.FromSlash(p))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", errors.Wrap(err, "create object dir")
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", errors.Wrap(err, "write object")
	}
	return d.PublicURL(p)
}

func (d *Disk) PublicURL(objectPath string) (string, error) {
	p, err := cleanPath(objectPath)
	if err != nil {
		return "", err
	}
	return d.baseURL + "/" + (&url.URL{Path: p}).EscapedPath(), nil
}

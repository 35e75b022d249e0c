package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
)

func TestCleanPath(t *testing.T) {
	testCases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"tickets/u1/a.png", "tickets/u1/a.png", false},
		{"tickets//u1/./a.png", "tickets/u1/a.png", false},
		{"", "", true},
		{"/etc/passwd", "", true},
		{"../secret", "", true},
		{"tickets/../../secret", "", true},
		{"tickets\\u1", "", true},
	}

	for _, tc := range testCases {
		got, err := cleanPath(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidPath) {
				t.Errorf("cleanPath(%q) err = %v; want ErrInvalidPath", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("cleanPath(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
}

func TestDiskUpload(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDisk(dir, "http://localhost:8080/uploads/")
	if err != nil {
		t.Fatalf("NewDisk: %v", err)
	}

	url, err := d.Upload(context.Background(), "tickets/u1/a b.png", []byte("png"), "image/png")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if want := "http://localhost:8080/uploads/tickets/u1/a%20b.png"; url != want {
		t.Errorf("url = %q; want %q", url, want)
	}

	data, err := os.ReadFile(filepath.Join(dir, "tickets", "u1", "a b.png"))
	if err != nil || string(data) != "png" {
		t.Errorf("stored object = %q, %v", data, err)
	}

	if _, err := d.Upload(context.Background(), "../escape.png", []byte("x"), "image/png"); err == nil {
		t.Error("Upload outside the root succeeded")
	}
}

func TestCloudinaryPublicID(t *testing.T) {
	if got := publicID("tickets/u1/abc.jpg"); got != "tickets/u1/abc" {
		t.Errorf("publicID = %q", got)
	}
}

func TestDiskFileSystemHidesDirectories(t *testing.T) {
	d, err := NewDisk(t.TempDir(), "http://campus.test/uploads")
	if err != nil {
		t.Fatalf("NewDisk: %v", err)
	}
	if _, err := d.Upload(context.Background(), "tickets/u1/a.png", []byte("img"), "image/png"); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	srv := http.FileServer(d.FileSystem())
	testCases := []struct {
		path string
		code int
	}{
		{"/tickets/u1/a.png", http.StatusOK},
		{"/", http.StatusNotFound},
		{"/tickets/", http.StatusNotFound},
		{"/tickets/u1/", http.StatusNotFound},
		{"/tickets/u1", http.StatusNotFound},
	}
	for _, tc := range testCases {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if rec.Code != tc.code {
			t.Errorf("GET %s = %d; want %d", tc.path, rec.Code, tc.code)
		}
	}
}

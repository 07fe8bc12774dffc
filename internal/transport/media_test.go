package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func TestMediaIndexFetchCachesOnSecondCall(t *testing.T) {
	var requests int32
	pngBytes := []byte("\x89PNG\r\n\x1a\n" + "not a real png but sniffs as one")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngBytes)
	}))
	defer server.Close()

	dir := t.TempDir()
	idx, err := OpenMediaIndex(filepath.Join(dir, "media.db"), filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatalf("OpenMediaIndex: %v", err)
	}
	defer idx.Close()

	att := Attachment{URL: server.URL + "/file.png", MimeType: "image/png", Filename: "file.png"}

	first, err := idx.Fetch(context.Background(), att)
	if err != nil {
		t.Fatalf("first Fetch: %v", err)
	}
	if first.LocalPath == "" {
		t.Fatal("expected a local cache path")
	}

	second, err := idx.Fetch(context.Background(), att)
	if err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if second.LocalPath != first.LocalPath {
		t.Fatalf("expected cached fetch to reuse local path, got %q vs %q", second.LocalPath, first.LocalPath)
	}

	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Fatalf("expected exactly one HTTP request, got %d", got)
	}
}

func TestMediaIndexRejectsDisallowedMIME(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-executable")
		w.Write([]byte{0x00, 0x01, 0x02, 0x03})
	}))
	defer server.Close()

	dir := t.TempDir()
	idx, err := OpenMediaIndex(filepath.Join(dir, "media.db"), filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatalf("OpenMediaIndex: %v", err)
	}
	defer idx.Close()

	_, err = idx.Fetch(context.Background(), Attachment{URL: server.URL + "/bad.bin"})
	if err == nil {
		t.Fatal("expected disallowed MIME type to be rejected")
	}
}

func TestMediaIndexRejectsOversizedMedia(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		buf := make([]byte, maxMediaBytes+1024)
		w.Write(buf)
	}))
	defer server.Close()

	dir := t.TempDir()
	idx, err := OpenMediaIndex(filepath.Join(dir, "media.db"), filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatalf("OpenMediaIndex: %v", err)
	}
	defer idx.Close()

	_, err = idx.Fetch(context.Background(), Attachment{URL: server.URL + "/big.txt", MimeType: "text/plain"})
	if err == nil {
		t.Fatal("expected oversized media to be rejected")
	}
}

package dataset

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/8asic/mlpc2025-sound-event-detection/config"
	"github.com/8asic/mlpc2025-sound-event-detection/logging"
)

func init() {
	logging.SetGlobalLogger(&logging.NoOpLogger{})
}

func newTestDownloader(t *testing.T) *Downloader {
	t.Helper()
	cfg := config.Default()
	cfg.BaseDataDir = t.TempDir()
	return NewDownloader(cfg)
}

func TestDownloadFile(t *testing.T) {
	payload := []byte("dataset archive bytes")
	sum := sha256.Sum256(payload)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != userAgent {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		w.Write(payload)
	}))
	defer srv.Close()

	d := newTestDownloader(t)
	dest := filepath.Join(t.TempDir(), "data.zip")
	if err := d.downloadFile(context.Background(), srv.URL, dest, hex.EncodeToString(sum[:])); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(payload) {
		t.Errorf("downloaded content differs")
	}
}

func TestDownloadFileChecksumMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tampered"))
	}))
	defer srv.Close()

	d := newTestDownloader(t)
	dest := filepath.Join(t.TempDir(), "data.zip")
	wrong := sha256.Sum256([]byte("expected"))

	if err := d.downloadFile(context.Background(), srv.URL, dest, hex.EncodeToString(wrong[:])); err == nil {
		t.Fatal("expected checksum mismatch error")
	}
	// The destination must not survive a failed attempt
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Errorf("partial file left behind: %v", err)
	}
}

func TestDownloadFileBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	d := newTestDownloader(t)
	dest := filepath.Join(t.TempDir(), "data.zip")
	if err := d.downloadFile(context.Background(), srv.URL, dest, ""); err == nil {
		t.Fatal("expected error for 404 response")
	}
}

func TestDownloadFileTruncatedBody(t *testing.T) {
	// The server advertises a large body, sends a fragment, then severs
	// the connection mid-stream
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000000")
		w.Write(make([]byte, 1000))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		panic(http.ErrAbortHandler)
	}))
	defer srv.Close()

	d := newTestDownloader(t)
	dest := filepath.Join(t.TempDir(), "data.zip")

	done := make(chan error, 1)
	go func() {
		done <- d.downloadFile(context.Background(), srv.URL, dest, "")
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected error for a body that ends early")
		}
	case <-time.After(10 * time.Second):
		t.Fatal("downloadFile did not return after a mid-body failure")
	}

	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Errorf("partial file left behind: %v", err)
	}
}

func TestDownloadWithRetryCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := newTestDownloader(t)
	dest := filepath.Join(t.TempDir(), "data.zip")
	err := d.DownloadWithRetry(ctx, srv.URL, dest, "")
	if err == nil {
		t.Fatal("expected error with cancelled context")
	}
}

func TestVerifyChecksum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.bin")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256([]byte("hello"))

	ok, err := VerifyChecksum(path, hex.EncodeToString(sum[:]))
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("matching checksum reported as mismatch")
	}

	ok, err = VerifyChecksum(path, "deadbeef")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("wrong checksum reported as match")
	}

	// Empty expectation skips verification
	ok, err = VerifyChecksum(path, "")
	if err != nil || !ok {
		t.Errorf("empty expectation: ok=%v err=%v", ok, err)
	}
}

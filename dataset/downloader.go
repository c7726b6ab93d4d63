package dataset

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/8asic/mlpc2025-sound-event-detection/config"
	"github.com/8asic/mlpc2025-sound-event-detection/logging"
)

const (
	maxRetries = 3
	retryDelay = 5 * time.Second
	userAgent  = "MLPC2025-DataDownloader/1.0"

	// headerTimeout bounds time-to-first-byte; the body itself may
	// stream for much longer on slow links
	headerTimeout = 30 * time.Second
)

// Downloader handles dataset download and extraction
type Downloader struct {
	cfg    *config.Config
	client *http.Client
}

// NewDownloader creates a downloader for the given configuration
func NewDownloader(cfg *config.Config) *Downloader {
	return &Downloader{
		cfg: cfg,
		client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: headerTimeout,
			},
		},
	}
}

// DownloadWithRetry attempts a download up to maxRetries times with a
// fixed delay between attempts. The destination file never survives a
// failed attempt.
func (d *Downloader) DownloadWithRetry(ctx context.Context, url, dest, expectedSHA256 string) error {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		logging.Info("download attempt", logging.Fields{
			"attempt": fmt.Sprintf("%d/%d", attempt, maxRetries),
			"url":     url,
		})

		lastErr = d.downloadFile(ctx, url, dest, expectedSHA256)
		if lastErr == nil {
			return nil
		}
		logging.Warn("download failed", logging.Fields{"error": lastErr.Error()})

		if attempt < maxRetries {
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("download failed after %d attempts: %w", maxRetries, lastErr)
}

func (d *Downloader) downloadFile(ctx context.Context, url, dest, expectedSHA256 string) (err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s for %s", resp.Status, url)
	}

	totalSize := resp.ContentLength
	if totalSize > 0 {
		if free, spaceErr := freeSpace(filepath.Dir(dest)); spaceErr != nil {
			logging.Warn("could not check disk space", logging.Fields{"error": spaceErr.Error()})
		} else if free < uint64(totalSize) {
			return fmt.Errorf("insufficient disk space: need %d bytes, have %d", totalSize, free)
		}
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	defer func() {
		f.Close()
		if err != nil {
			os.Remove(dest)
		}
	}()

	body := io.Reader(resp.Body)
	if totalSize > 0 {
		p := mpb.New(mpb.WithWidth(64))
		bar := p.AddBar(totalSize,
			mpb.PrependDecorators(
				decor.Name(filepath.Base(dest)+": "),
				decor.CountersKibiByte("% .1f / % .1f"),
			),
			mpb.AppendDecorators(
				decor.Percentage(),
				decor.EwmaETA(decor.ET_STYLE_GO, 60),
			),
		)
		proxy := bar.ProxyReader(resp.Body)
		defer proxy.Close()
		body = proxy
		// A failed body read leaves the bar incomplete and Wait would
		// block forever, so abort it first on the error path
		defer func() {
			if err != nil {
				bar.Abort(true)
			}
			p.Wait()
		}()
	}

	if _, err = io.Copy(f, body); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dest, err)
	}

	if expectedSHA256 != "" {
		ok, sumErr := VerifyChecksum(dest, expectedSHA256)
		if sumErr != nil {
			err = fmt.Errorf("checksum verification: %w", sumErr)
			return err
		}
		if !ok {
			err = fmt.Errorf("checksum mismatch for %s", filepath.Base(dest))
			return err
		}
	}

	return nil
}

// VerifyChecksum compares a file against an expected hex SHA-256. An
// empty expectation skips verification and reports success.
func VerifyChecksum(path, expectedSHA256 string) (bool, error) {
	if expectedSHA256 == "" {
		return true, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return false, err
	}
	return hex.EncodeToString(h.Sum(nil)) == expectedSHA256, nil
}

package dataset

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// ExtractZip unpacks an archive into extractTo with per-file progress.
// Entries that would escape the target directory are rejected. On any
// failure the partially extracted tree is removed.
func ExtractZip(zipPath, extractTo string) (err error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("open zip %s: %w", zipPath, err)
	}
	defer zr.Close()

	defer func() {
		if err != nil {
			os.RemoveAll(extractTo)
		}
	}()

	if err = os.MkdirAll(extractTo, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", extractTo, err)
	}

	p := mpb.New(mpb.WithWidth(64))
	bar := p.AddBar(int64(len(zr.File)),
		mpb.PrependDecorators(
			decor.Name("Extracting: "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(decor.Percentage()),
	)

	for _, entry := range zr.File {
		if err = extractEntry(entry, extractTo); err != nil {
			bar.Abort(true)
			p.Wait()
			return fmt.Errorf("extract %s: %w", entry.Name, err)
		}
		bar.Increment()
	}

	p.Wait()
	return nil
}

func extractEntry(entry *zip.File, extractTo string) error {
	dest, err := sanitizePath(extractTo, entry.Name)
	if err != nil {
		return err
	}

	if entry.FileInfo().IsDir() {
		return os.MkdirAll(dest, 0o755)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	rc, err := entry.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, entry.Mode().Perm()|0o200)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, rc); err != nil {
		return err
	}
	return f.Close()
}

// sanitizePath joins an archive entry name under root, rejecting names
// that would land outside it
func sanitizePath(root, name string) (string, error) {
	dest := filepath.Join(root, filepath.FromSlash(name))
	if dest != root && !strings.HasPrefix(dest, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("illegal entry path %q", name)
	}
	return dest, nil
}

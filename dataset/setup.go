package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/8asic/mlpc2025-sound-event-detection/config"
	"github.com/8asic/mlpc2025-sound-event-detection/logging"
)

// SetupDataset runs the full setup for one dataset: skip when already
// present and valid, download the zip when missing, extract, verify the
// extracted tree, and clean up the archive.
func (d *Downloader) SetupDataset(ctx context.Context, dt config.DatasetType) error {
	spec, ok := d.cfg.Datasets[dt]
	if !ok {
		return fmt.Errorf("unknown dataset %q", dt)
	}

	targetDir := d.cfg.DatasetPath(dt)
	zipPath := filepath.Join(filepath.Dir(targetDir), spec.ZipName)
	log := logging.WithFields(logging.Fields{"dataset": string(dt)})

	if valid, _ := d.cfg.VerifyDataset(dt); valid {
		log.Info("dataset already exists and is valid")
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(targetDir), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	if _, err := os.Stat(zipPath); err != nil {
		if err := d.DownloadWithRetry(ctx, spec.DownloadURL, zipPath, spec.SHA256); err != nil {
			return fmt.Errorf("download %s dataset: %w", dt, err)
		}
	} else {
		log.Info("zip already downloaded, skipping download", logging.Fields{"zip": zipPath})
	}

	log.Info("extracting", logging.Fields{"zip": filepath.Base(zipPath), "to": targetDir})
	if err := ExtractZip(zipPath, targetDir); err != nil {
		return fmt.Errorf("extract %s dataset: %w", dt, err)
	}

	if valid, missing := d.cfg.VerifyDataset(dt); !valid {
		return fmt.Errorf("extracted %s dataset is incomplete, missing %v", dt, missing)
	}

	if err := os.Remove(zipPath); err != nil {
		log.Warn("could not delete zip file", logging.Fields{"error": err.Error()})
	}

	log.Info("dataset set up successfully")
	return nil
}

// SetupTasks sets up the datasets for the given task numbers (2-4). A
// nil or empty list means all tasks. Failures are aggregated so every
// dataset gets its attempt.
func (d *Downloader) SetupTasks(ctx context.Context, tasks []int) error {
	if len(tasks) == 0 {
		tasks = []int{2, 3, 4}
	}

	var failed []string
	for _, task := range tasks {
		dt, err := config.DatasetForTask(task)
		if err != nil {
			logging.Error(err, "skipping task")
			failed = append(failed, fmt.Sprintf("task %d", task))
			continue
		}

		logging.Info("setting up dataset", logging.Fields{
			"task":    task,
			"dataset": string(dt),
		})
		if err := d.SetupDataset(ctx, dt); err != nil {
			logging.Error(err, "dataset setup failed", logging.Fields{"dataset": string(dt)})
			failed = append(failed, string(dt))
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("failed to set up: %v", failed)
	}

	logging.Info("all datasets successfully set up")
	return nil
}

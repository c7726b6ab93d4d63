package cmd

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/8asic/mlpc2025-sound-event-detection/config"
	"github.com/8asic/mlpc2025-sound-event-detection/data"
	"github.com/8asic/mlpc2025-sound-event-detection/features"
	"github.com/8asic/mlpc2025-sound-event-detection/logging"
)

var (
	extractDataset    string
	extractDataDir    string
	extractFeatureKey string
	extractOut        string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract region features from an annotated dataset",
	Long: `Loads the annotation table and per-file audio features of a
dataset, fits one pooled feature scaler over the whole corpus, extracts
a mean feature vector per annotated region and per inferred silent
region, and writes the labeled feature matrix as CSV.

With --feature-key melspec the feature tracks are computed from the raw
audio in the dataset's audio/ directory (decoded through ffmpeg) instead
of read from precomputed NPZ archives.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir := extractDataDir
		if dataDir == "" {
			dataDir = cfg.DatasetPath(config.DatasetType(extractDataset))
		}

		featureKey := extractFeatureKey
		if featureKey == "" {
			featureKey = cfg.FeatureKey
		}

		annotations, _, err := data.LoadAnnotations(dataDir)
		if err != nil {
			return err
		}

		var tracks features.TrackSet
		if featureKey == features.MelFeatureKey {
			mt, merr := features.NewMelTrack(features.DefaultSampleRate, cfg.Resolution)
			if merr != nil {
				return merr
			}
			tracks, err = data.LoadMelTracks(filepath.Join(dataDir, "audio"), nil, mt, nil)
		} else {
			tracks, err = data.LoadAudioFeatures(filepath.Join(dataDir, "audio_features"), nil, featureKey)
		}
		if err != nil {
			return err
		}

		extractor := features.NewExtractorWithParams(features.ExtractorParams{
			Resolution: cfg.Resolution,
			FeatureKey: featureKey,
		})

		matrix, labels, err := extractor.ProcessAllRegions(data.Intervals(annotations), tracks)
		if err != nil {
			return err
		}

		if err := writeRegionCSV(extractOut, matrix, labels); err != nil {
			return err
		}

		logging.Info("wrote region features", logging.Fields{
			"regions": len(labels),
			"dim":     len(matrix[0]),
			"out":     extractOut,
		})
		return nil
	},
}

// writeRegionCSV writes one row per region: label first, then the
// feature vector
func writeRegionCSV(path string, matrix [][]float64, labels []features.Label) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := make([]string, 1+len(matrix[0]))
	header[0] = "label"
	for d := range matrix[0] {
		header[d+1] = "f" + strconv.Itoa(d)
	}
	if err := w.Write(header); err != nil {
		return err
	}

	record := make([]string, len(header))
	for i, row := range matrix {
		record[0] = string(labels[i])
		for d, v := range row {
			record[d+1] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func init() {
	extractCmd.Flags().StringVar(&extractDataset, "dataset", string(config.DatasetClassification), "dataset to process (exploration|classification|challenge)")
	extractCmd.Flags().StringVar(&extractDataDir, "data", "", "explicit dataset directory (overrides --dataset)")
	extractCmd.Flags().StringVar(&extractFeatureKey, "feature-key", "", "feature stream to extract; melspec computes tracks from raw audio (default from config)")
	extractCmd.Flags().StringVar(&extractOut, "out", "region_features.csv", "output CSV path")
	rootCmd.AddCommand(extractCmd)
}

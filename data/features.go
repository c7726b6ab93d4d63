package data

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/8asic/mlpc2025-sound-event-detection/features"
	"github.com/8asic/mlpc2025-sound-event-detection/logging"
)

// LoadAudioFeatures reads per-file feature NPZ archives from a
// directory into a TrackSet. fileList, when non-nil, restricts loading
// to those stems (filenames without .npz). featureKeys names the arrays
// to pull from each archive; a key absent from one file is a warning,
// and an unreadable file is skipped with a warning. Only an entirely
// empty result is an error.
func LoadAudioFeatures(featureDir string, fileList []string, featureKeys ...string) (features.TrackSet, error) {
	if len(featureKeys) == 0 {
		featureKeys = []string{features.DefaultFeatureKey}
	}

	entries, err := os.ReadDir(featureDir)
	if err != nil {
		return nil, fmt.Errorf("feature directory not found at %s: %w", featureDir, err)
	}

	var wanted map[string]bool
	if fileList != nil {
		wanted = make(map[string]bool, len(fileList))
		for _, name := range fileList {
			wanted[name] = true
		}
	}

	tracks := make(features.TrackSet)
	loadedFiles := 0

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".npz") {
			continue
		}
		filename := strings.TrimSuffix(entry.Name(), ".npz")
		if wanted != nil && !wanted[filename] {
			continue
		}

		arrays, err := ReadNPZ(filepath.Join(featureDir, entry.Name()))
		if err != nil {
			logging.Warn("error loading feature file", logging.Fields{
				"file":  entry.Name(),
				"error": err.Error(),
			})
			continue
		}

		fileFeatures := make(map[string]features.FeatureTrack)
		for _, key := range featureKeys {
			arr, ok := arrays[key]
			if !ok {
				logging.Warn("feature not found in file", logging.Fields{
					"feature": key,
					"file":    entry.Name(),
				})
				continue
			}
			fileFeatures[key] = arr.Matrix()
		}

		if len(fileFeatures) > 0 {
			tracks[filename] = fileFeatures
			loadedFiles++
		}
	}

	if len(tracks) == 0 {
		return nil, fmt.Errorf("no valid feature files found in %s", featureDir)
	}

	logging.Info("loaded audio features", logging.Fields{"files": loadedFiles})
	return tracks, nil
}

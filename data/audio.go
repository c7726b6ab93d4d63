package data

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/8asic/mlpc2025-sound-event-detection/features"
	"github.com/8asic/mlpc2025-sound-event-detection/logging"
)

// PCMDecoder turns an audio file into mono float64 PCM at the given
// sample rate
type PCMDecoder func(path string, sampleRate int) ([]float64, error)

// DecodePCM decodes an audio file through ffmpeg, downmixed to mono and
// resampled to sampleRate
func DecodePCM(path string, sampleRate int) ([]float64, error) {
	cmd := exec.Command("ffmpeg",
		"-v", "error",
		"-i", path,
		"-f", "f64le",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"pipe:1",
	)

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("decode %s: %w: %s", path, err, bytes.TrimSpace(exitErr.Stderr))
		}
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return pcmFromBytes(out), nil
}

// pcmFromBytes reinterprets little-endian f64 bytes as samples, dropping
// a trailing partial value
func pcmFromBytes(raw []byte) []float64 {
	samples := make([]float64, len(raw)/8)
	for i := range samples {
		samples[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
	}
	return samples
}

var audioExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".flac": true,
	".ogg":  true,
	".m4a":  true,
}

// LoadMelTracks decodes the audio files in audioDir and computes one
// log-mel FeatureTrack per file, keyed under features.MelFeatureKey. It
// covers datasets shipped without precomputed feature archives.
// fileList, when non-nil, restricts loading to those stems. A nil decode
// uses DecodePCM. A file that fails to decode or is too short is skipped
// with a warning; only an entirely empty result is an error.
func LoadMelTracks(audioDir string, fileList []string, mt *features.MelTrack, decode PCMDecoder) (features.TrackSet, error) {
	if decode == nil {
		decode = DecodePCM
	}

	entries, err := os.ReadDir(audioDir)
	if err != nil {
		return nil, fmt.Errorf("audio directory not found at %s: %w", audioDir, err)
	}

	var wanted map[string]bool
	if fileList != nil {
		wanted = make(map[string]bool, len(fileList))
		for _, name := range fileList {
			wanted[name] = true
		}
	}

	tracks := make(features.TrackSet)
	for _, entry := range entries {
		if entry.IsDir() || !audioExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		stem := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if wanted != nil && !wanted[stem] {
			continue
		}

		samples, err := decode(filepath.Join(audioDir, entry.Name()), mt.SampleRate())
		if err != nil {
			logging.Warn("error decoding audio file", logging.Fields{
				"file":  entry.Name(),
				"error": err.Error(),
			})
			continue
		}

		track, err := mt.Compute(samples)
		if err != nil {
			logging.Warn("error computing feature track", logging.Fields{
				"file":  entry.Name(),
				"error": err.Error(),
			})
			continue
		}
		tracks[stem] = map[string]features.FeatureTrack{features.MelFeatureKey: track}
	}

	if len(tracks) == 0 {
		return nil, fmt.Errorf("no decodable audio files found in %s", audioDir)
	}

	logging.Info("computed audio feature tracks", logging.Fields{"files": len(tracks)})
	return tracks, nil
}

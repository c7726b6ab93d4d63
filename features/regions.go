package features

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/8asic/mlpc2025-sound-event-detection/logging"
)

// DefaultResolution is the seconds covered by one feature frame. Frame i
// of a track covers [i*Resolution, (i+1)*Resolution).
const DefaultResolution = 0.12

// DefaultFeatureKey selects the feature stream inside per-file archives
// when the caller does not name one
const DefaultFeatureKey = "embeddings"

// Label classifies how a region got its identity
type Label string

const (
	// LabelAnnotated marks a region taken directly from the annotation table
	LabelAnnotated Label = "annotated"

	// LabelSilent marks a gap inferred between annotated regions
	LabelSilent Label = "silent"
)

// Interval is one labeled time span within one audio recording.
// Intervals sharing a filename may overlap and arrive in any order.
type Interval struct {
	Filename string
	Onset    float64
	Offset   float64
}

// Duration returns the interval length in seconds
func (iv Interval) Duration() float64 {
	return iv.Offset - iv.Onset
}

// FeatureTrack is an ordered sequence of fixed-length feature frames
// for one file, sampled at one frame per Resolution seconds
type FeatureTrack = [][]float64

// TrackSet maps filename -> feature key -> feature track
type TrackSet = map[string]map[string]FeatureTrack

// ConfigurationError reports that the requested feature key is absent
// from every file, so there is nothing to fit a scaler on.
type ConfigurationError struct {
	Key string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("no %q features found in any audio file", e.Key)
}

// EmptyResultError reports that every candidate region across every file
// produced an empty extraction.
type EmptyResultError struct{}

func (e *EmptyResultError) Error() string {
	return "no valid regions found in any audio files"
}

// ExtractorParams configures region feature extraction
type ExtractorParams struct {
	// Resolution is seconds per feature frame (default 0.12)
	Resolution float64 `json:"resolution"`

	// FeatureKey names the feature stream to extract (default "embeddings")
	FeatureKey string `json:"feature_key"`
}

// DefaultExtractorParams returns the course defaults
func DefaultExtractorParams() ExtractorParams {
	return ExtractorParams{
		Resolution: DefaultResolution,
		FeatureKey: DefaultFeatureKey,
	}
}

// Extractor converts time-interval annotations plus per-file frame
// sequences into a flat, scaler-normalized feature matrix with region
// labels, including inferred silent regions.
//
// The computation is a two-phase batch: the pooled scaler fit over the
// whole corpus must complete before any per-file extraction begins.
// Extractor never mutates its inputs and holds no state between calls,
// so one instance is safe to reuse.
type Extractor struct {
	params ExtractorParams
}

// NewExtractor creates an extractor with default parameters
func NewExtractor() *Extractor {
	return NewExtractorWithParams(DefaultExtractorParams())
}

// NewExtractorWithParams creates an extractor with custom parameters,
// filling zero values with defaults
func NewExtractorWithParams(params ExtractorParams) *Extractor {
	if params.Resolution <= 0 {
		params.Resolution = DefaultResolution
	}
	if params.FeatureKey == "" {
		params.FeatureKey = DefaultFeatureKey
	}
	return &Extractor{params: params}
}

// Params returns the extractor's parameters
func (e *Extractor) Params() ExtractorParams {
	return e.params
}

// ExtractRegionFeatures computes the mean feature vector for the time
// span [onset, offset) over a (T, D) track. The span is quantized to
// whole frames: floor for the start, ceil for the end, then clamped to
// the track. Boundary frames count wholesale, not weighted by overlap
// fraction; downstream models were fitted on exactly this quantization.
//
// A nil result means the span lies outside the track. That is a normal
// outcome, not an error.
func (e *Extractor) ExtractRegionFeatures(onset, offset float64, track FeatureTrack, scaler *StandardScaler) []float64 {
	startIdx := int(math.Floor(onset / e.params.Resolution))
	endIdx := int(math.Ceil(offset / e.params.Resolution))

	if startIdx >= len(track) || endIdx <= 0 {
		return nil
	}

	if startIdx < 0 {
		startIdx = 0
	}
	if endIdx > len(track) {
		endIdx = len(track)
	}

	segment := track[startIdx:endIdx]
	if len(segment) == 0 {
		return nil
	}

	mean := make([]float64, len(segment[0]))
	for _, frame := range segment {
		if scaler != nil {
			frame = scaler.TransformFrame(frame)
		}
		floats.Add(mean, frame)
	}
	floats.Scale(1.0/float64(len(segment)), mean)

	return mean
}

// coveredSpan marks annotated territory for silent-gap inference
type coveredSpan struct {
	onset  float64
	offset float64
}

// ProcessAllRegions extracts one mean feature vector per annotated
// interval and per inferred silent gap, across every file that carries
// the configured feature key.
//
// Row i of the returned matrix and index i of the label slice always
// describe the same region. Files are visited in sorted filename order;
// within a file annotated rows come first in onset order, then silent
// rows in chronological gap order.
func (e *Extractor) ProcessAllRegions(intervals []Interval, tracks TrackSet) ([][]float64, []Label, error) {
	key := e.params.FeatureKey

	filenames := make([]string, 0, len(tracks))
	for filename := range tracks {
		filenames = append(filenames, filename)
	}
	sort.Strings(filenames)

	// Phase 1: pool every file's track for one global scaler fit. The
	// fit must complete before any extraction starts.
	var pooled [][]float64
	keyPresent := false
	for _, filename := range filenames {
		if track, ok := tracks[filename][key]; ok {
			keyPresent = true
			pooled = append(pooled, track...)
		}
	}
	if !keyPresent {
		return nil, nil, &ConfigurationError{Key: key}
	}

	// Zero pooled frames means every track is empty; extraction below
	// will produce no rows and report that, so skip the fit.
	var scaler *StandardScaler
	if len(pooled) > 0 {
		scaler = NewStandardScaler()
		if err := scaler.Fit(pooled); err != nil {
			return nil, nil, fmt.Errorf("fit scaler for %q: %w", key, err)
		}
	}

	// Phase 2: per-file extraction. Files are independent from here on.
	var matrix [][]float64
	var labels []Label

	for _, filename := range filenames {
		track, ok := tracks[filename][key]
		if !ok {
			logging.Warn("feature key missing for file", logging.Fields{
				"file": filename,
				"key":  key,
			})
			continue
		}

		totalDuration := float64(len(track)) * e.params.Resolution

		fileIntervals := make([]Interval, 0)
		for _, iv := range intervals {
			if iv.Filename == filename {
				fileIntervals = append(fileIntervals, iv)
			}
		}
		// Stable: equal onsets keep table order, which only affects row
		// ordering, never correctness.
		sort.SliceStable(fileIntervals, func(i, j int) bool {
			return fileIntervals[i].Onset < fileIntervals[j].Onset
		})

		// Annotated regions. Every interval marks covered territory for
		// gap inference even when its own extraction comes up empty.
		covered := make([]coveredSpan, 0, len(fileIntervals))
		for _, iv := range fileIntervals {
			if feat := e.ExtractRegionFeatures(iv.Onset, iv.Offset, track, scaler); feat != nil {
				matrix = append(matrix, feat)
				labels = append(labels, LabelAnnotated)
			}
			covered = append(covered, coveredSpan{onset: iv.Onset, offset: iv.Offset})
		}

		// Silent regions: maximal gaps between covered spans, plus the
		// leading gap from 0 and the trailing gap to the track end.
		prevEnd := 0.0
		for _, span := range covered {
			if span.onset > prevEnd {
				if feat := e.ExtractRegionFeatures(prevEnd, span.onset, track, scaler); feat != nil {
					matrix = append(matrix, feat)
					labels = append(labels, LabelSilent)
				}
			}
			// Monotonic: overlapping or contained spans never shrink it
			prevEnd = math.Max(prevEnd, span.offset)
		}
		if prevEnd < totalDuration {
			if feat := e.ExtractRegionFeatures(prevEnd, totalDuration, track, scaler); feat != nil {
				matrix = append(matrix, feat)
				labels = append(labels, LabelSilent)
			}
		}
	}

	if len(matrix) == 0 {
		return nil, nil, &EmptyResultError{}
	}

	return matrix, labels, nil
}

package features

import (
	"errors"
	"math"
	"testing"

	"github.com/8asic/mlpc2025-sound-event-detection/logging"
)

func init() {
	logging.SetGlobalLogger(&logging.NoOpLogger{})
}

// track1D builds a (len(values), 1) track
func track1D(values ...float64) FeatureTrack {
	track := make(FeatureTrack, len(values))
	for i, v := range values {
		track[i] = []float64{v}
	}
	return track
}

func floatsEqual(a, b []float64, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}

func TestExtractRegionSelectsSingleFrame(t *testing.T) {
	e := NewExtractor()
	track := track1D(1.0, 2.0, 3.0)

	got := e.ExtractRegionFeatures(0.0, 0.12, track, nil)
	if got == nil {
		t.Fatal("expected a feature vector, got nil")
	}
	if !floatsEqual(got, []float64{1.0}, 1e-12) {
		t.Errorf("region [0, 0.12) should select exactly frame 0, got %v", got)
	}
}

func TestExtractRegionBeyondBounds(t *testing.T) {
	e := NewExtractor()
	track := track1D(1.0, 2.0, 3.0)
	totalDuration := 3 * DefaultResolution

	if got := e.ExtractRegionFeatures(totalDuration+1, totalDuration+2, track, nil); got != nil {
		t.Errorf("region past the track end should be empty, got %v", got)
	}
	if got := e.ExtractRegionFeatures(-2.0, -1.0, track, nil); got != nil {
		t.Errorf("region before the track start should be empty, got %v", got)
	}
	if got := e.ExtractRegionFeatures(0.0, 0.12, FeatureTrack{}, nil); got != nil {
		t.Errorf("empty track should yield empty, got %v", got)
	}
}

func TestExtractRegionMean(t *testing.T) {
	e := NewExtractor()
	track := track1D(1.0, 2.0, 3.0)

	got := e.ExtractRegionFeatures(0.0, 0.36, track, nil)
	if got == nil {
		t.Fatal("expected a feature vector, got nil")
	}
	if math.Abs(got[0]-2.0) > 1e-12 {
		t.Errorf("mean over frames [1 2 3] = %v, want 2.0", got[0])
	}
}

func TestExtractRegionClampsPartialOverlap(t *testing.T) {
	e := NewExtractor()
	track := track1D(1.0, 2.0, 3.0)

	// Region runs past the end; only the frames that exist contribute
	got := e.ExtractRegionFeatures(0.12, 10.0, track, nil)
	if got == nil {
		t.Fatal("expected a feature vector, got nil")
	}
	if math.Abs(got[0]-2.5) > 1e-12 {
		t.Errorf("clamped mean over frames [2 3] = %v, want 2.5", got[0])
	}
}

func TestExtractRegionDoesNotMutateInput(t *testing.T) {
	e := NewExtractor()
	track := track1D(4.0, 8.0)

	scaler := NewStandardScaler()
	if err := scaler.Fit(track); err != nil {
		t.Fatal(err)
	}
	e.ExtractRegionFeatures(0.0, 0.24, track, scaler)

	if track[0][0] != 4.0 || track[1][0] != 8.0 {
		t.Errorf("input track was mutated: %v", track)
	}
}

func TestProcessAllRegionsSilentInference(t *testing.T) {
	e := NewExtractorWithParams(ExtractorParams{FeatureKey: "mfcc"})
	track := track1D(1.0, 2.0, 3.0, 4.0, 5.0) // duration 0.6s

	intervals := []Interval{
		{Filename: "rec", Onset: 0.0, Offset: 0.12},
		{Filename: "rec", Onset: 0.36, Offset: 0.48},
	}
	tracks := TrackSet{"rec": {"mfcc": track}}

	matrix, labels, err := e.ProcessAllRegions(intervals, tracks)
	if err != nil {
		t.Fatal(err)
	}

	wantLabels := []Label{LabelAnnotated, LabelAnnotated, LabelSilent, LabelSilent}
	if len(labels) != len(wantLabels) {
		t.Fatalf("got %d regions %v, want %d", len(labels), labels, len(wantLabels))
	}
	for i, want := range wantLabels {
		if labels[i] != want {
			t.Errorf("label[%d] = %q, want %q", i, labels[i], want)
		}
	}

	// Silent candidates are [0.12, 0.36) and [0.48, 0.6), in that order.
	// Reproduce the pooled fit to check the rows.
	scaler := NewStandardScaler()
	if err := scaler.Fit(track); err != nil {
		t.Fatal(err)
	}
	wantFirstGap := e.ExtractRegionFeatures(0.12, 0.36, track, scaler)
	wantSecondGap := e.ExtractRegionFeatures(0.48, 0.60, track, scaler)

	if !floatsEqual(matrix[2], wantFirstGap, 1e-12) {
		t.Errorf("first silent row = %v, want %v", matrix[2], wantFirstGap)
	}
	if !floatsEqual(matrix[3], wantSecondGap, 1e-12) {
		t.Errorf("second silent row = %v, want %v", matrix[3], wantSecondGap)
	}
}

func TestProcessAllRegionsOverlappingIntervals(t *testing.T) {
	e := NewExtractorWithParams(ExtractorParams{FeatureKey: "mfcc"})
	track := track1D(1.0, 2.0, 3.0, 4.0, 5.0) // duration 0.6s

	// Second interval is contained in the first; prevEnd must not shrink
	intervals := []Interval{
		{Filename: "rec", Onset: 0.0, Offset: 0.48},
		{Filename: "rec", Onset: 0.12, Offset: 0.24},
	}
	tracks := TrackSet{"rec": {"mfcc": track}}

	_, labels, err := e.ProcessAllRegions(intervals, tracks)
	if err != nil {
		t.Fatal(err)
	}

	silent := 0
	for _, l := range labels {
		if l == LabelSilent {
			silent++
		}
	}
	// Only the trailing gap [0.48, 0.6) is silent
	if silent != 1 {
		t.Errorf("got %d silent regions in %v, want 1", silent, labels)
	}
}

func TestProcessAllRegionsConfigurationError(t *testing.T) {
	e := NewExtractorWithParams(ExtractorParams{FeatureKey: "mfcc"})
	tracks := TrackSet{"rec": {"embeddings": track1D(1.0, 2.0)}}

	_, _, err := e.ProcessAllRegions(nil, tracks)
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("got %v, want ConfigurationError", err)
	}
	if cfgErr.Key != "mfcc" {
		t.Errorf("error names key %q, want %q", cfgErr.Key, "mfcc")
	}
}

func TestProcessAllRegionsEmptyResult(t *testing.T) {
	e := NewExtractorWithParams(ExtractorParams{FeatureKey: "mfcc"})

	// The key exists but the track has no frames: every candidate
	// region, annotated or silent, comes up empty.
	tracks := TrackSet{"rec": {"mfcc": FeatureTrack{}}}
	intervals := []Interval{
		{Filename: "rec", Onset: 10.0, Offset: 11.0},
		{Filename: "rec", Onset: -5.0, Offset: -1.0},
	}

	_, _, err := e.ProcessAllRegions(intervals, tracks)
	var emptyErr *EmptyResultError
	if !errors.As(err, &emptyErr) {
		t.Fatalf("got %v, want EmptyResultError", err)
	}
}

func TestProcessAllRegionsRowAlignment(t *testing.T) {
	e := NewExtractorWithParams(ExtractorParams{FeatureKey: "mfcc"})
	tracks := TrackSet{
		"a": {"mfcc": track1D(1.0, 2.0, 3.0)},
		"b": {"mfcc": track1D(4.0, 5.0)},
	}
	intervals := []Interval{
		{Filename: "a", Onset: 0.12, Offset: 0.24},
		{Filename: "b", Onset: 0.0, Offset: 0.24},
	}

	matrix, labels, err := e.ProcessAllRegions(intervals, tracks)
	if err != nil {
		t.Fatal(err)
	}
	if len(matrix) != len(labels) {
		t.Fatalf("matrix has %d rows but %d labels", len(matrix), len(labels))
	}
	for i, row := range matrix {
		if len(row) != 1 {
			t.Errorf("row %d has width %d, want 1", i, len(row))
		}
	}
}

func TestProcessAllRegionsIdempotent(t *testing.T) {
	e := NewExtractorWithParams(ExtractorParams{FeatureKey: "mfcc"})
	tracks := TrackSet{
		"a": {"mfcc": track1D(1.0, 2.0, 3.0, 4.0)},
		"b": {"mfcc": track1D(5.0, 6.0)},
	}
	intervals := []Interval{
		{Filename: "a", Onset: 0.1, Offset: 0.3},
		{Filename: "b", Onset: 0.0, Offset: 0.12},
	}

	m1, l1, err := e.ProcessAllRegions(intervals, tracks)
	if err != nil {
		t.Fatal(err)
	}
	m2, l2, err := e.ProcessAllRegions(intervals, tracks)
	if err != nil {
		t.Fatal(err)
	}

	if len(m1) != len(m2) || len(l1) != len(l2) {
		t.Fatalf("run sizes differ: %d/%d rows, %d/%d labels", len(m1), len(m2), len(l1), len(l2))
	}
	for i := range m1 {
		if l1[i] != l2[i] {
			t.Errorf("label[%d] differs across runs: %q vs %q", i, l1[i], l2[i])
		}
		if !floatsEqual(m1[i], m2[i], 0) {
			t.Errorf("row %d differs across runs: %v vs %v", i, m1[i], m2[i])
		}
	}
}

func TestProcessAllRegionsSkipsFileMissingKey(t *testing.T) {
	e := NewExtractorWithParams(ExtractorParams{FeatureKey: "mfcc"})
	tracks := TrackSet{
		"a": {"mfcc": track1D(1.0, 2.0, 3.0)},
		"b": {"embeddings": track1D(4.0, 5.0)},
	}
	intervals := []Interval{
		{Filename: "b", Onset: 0.0, Offset: 0.12},
	}

	matrix, labels, err := e.ProcessAllRegions(intervals, tracks)
	if err != nil {
		t.Fatal(err)
	}
	// File b contributes nothing; file a yields one all-file silent row
	if len(matrix) != 1 || labels[0] != LabelSilent {
		t.Errorf("got %d rows with labels %v, want 1 silent row", len(matrix), labels)
	}
}

func TestRegionsByFile(t *testing.T) {
	intervals := []Interval{
		{Filename: "a", Onset: 0.5, Offset: 1.0},
		{Filename: "b", Onset: 0.0, Offset: 0.2},
		{Filename: "a", Onset: 0.1, Offset: 0.3},
	}

	regions := RegionsByFile(intervals)
	if len(regions) != 2 {
		t.Fatalf("got %d files, want 2", len(regions))
	}
	if got := regions["a"]; len(got) != 2 || got[0].Onset != 0.5 || got[1].Onset != 0.1 {
		t.Errorf("file a regions = %v, want table order [0.5 0.1]", got)
	}
}

func TestIntervalDuration(t *testing.T) {
	iv := Interval{Filename: "a", Onset: 1.5, Offset: 2.75}
	if got := iv.Duration(); math.Abs(got-1.25) > 1e-12 {
		t.Errorf("Duration() = %v, want 1.25", got)
	}
}

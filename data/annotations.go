package data

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/8asic/mlpc2025-sound-event-detection/features"
	"github.com/8asic/mlpc2025-sound-event-detection/logging"
)

// Annotation is one row of the course annotation table
type Annotation struct {
	Filename  string
	Onset     float64
	Offset    float64
	Text      string
	Annotator string
	Duration  float64 // derived: Offset - Onset
}

// Intervals converts annotations to the extractor's interval form
func Intervals(annotations []Annotation) []features.Interval {
	intervals := make([]features.Interval, len(annotations))
	for i, a := range annotations {
		intervals[i] = features.Interval{
			Filename: a.Filename,
			Onset:    a.Onset,
			Offset:   a.Offset,
		}
	}
	return intervals
}

// LoadAnnotations reads annotations.csv and the paired text-embedding
// NPZ from a dataset directory. A row-count mismatch between the two is
// a warning, not a failure; the caller proceeds with whatever alignment
// exists.
func LoadAnnotations(dataPath string) ([]Annotation, *Array, error) {
	annotPath := filepath.Join(dataPath, "annotations.csv")
	embedPath := filepath.Join(dataPath, "annotations_text_embeddings.npz")

	annotations, err := readAnnotationCSV(annotPath)
	if err != nil {
		return nil, nil, err
	}

	embeddings, err := ReadNPZKey(embedPath, "embeddings")
	if err != nil {
		return nil, nil, err
	}

	if len(annotations) != embeddings.Rows() {
		logging.Warn("annotation count doesn't match embedding count", logging.Fields{
			"annotations": len(annotations),
			"embeddings":  embeddings.Rows(),
		})
	}

	return annotations, embeddings, nil
}

func readAnnotationCSV(path string) ([]Annotation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("annotation file not found at %s: %w", path, err)
	}
	defer f.Close()

	// Default csv strictness: rows with a field count different from the
	// header come back as parse errors instead of panicking the indexers
	// below.
	reader := csv.NewReader(f)

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("annotation file %s is empty", path)
	}

	cols, err := columnIndex(records[0], "filename", "onset", "offset", "text", "annotator")
	if err != nil {
		return nil, fmt.Errorf("annotation file %s: %w", path, err)
	}

	annotations := make([]Annotation, 0, len(records)-1)
	for i, record := range records[1:] {
		onset, err := strconv.ParseFloat(record[cols["onset"]], 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: bad onset %q", path, i+2, record[cols["onset"]])
		}
		offset, err := strconv.ParseFloat(record[cols["offset"]], 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: bad offset %q", path, i+2, record[cols["offset"]])
		}

		annotations = append(annotations, Annotation{
			Filename:  record[cols["filename"]],
			Onset:     onset,
			Offset:    offset,
			Text:      record[cols["text"]],
			Annotator: record[cols["annotator"]],
			Duration:  offset - onset,
		})
	}

	return annotations, nil
}

// columnIndex maps required column names to their positions in the
// header row
func columnIndex(header []string, required ...string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}

	var missing []string
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %v", missing)
	}
	return cols, nil
}

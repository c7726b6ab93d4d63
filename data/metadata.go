package data

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/8asic/mlpc2025-sound-event-detection/logging"
)

// Table holds a CSV file whose schema the tooling does not interpret
type Table struct {
	Columns []string
	Rows    [][]string
}

// Len returns the number of data rows
func (t *Table) Len() int {
	return len(t.Rows)
}

// LoadMetadata reads metadata.csv with its title and keyword embedding
// NPZ files. Row-count mismatches between the table and either
// embedding array are warnings.
func LoadMetadata(dataPath string) (*Table, *Array, *Array, error) {
	metaPath := filepath.Join(dataPath, "metadata.csv")
	titlePath := filepath.Join(dataPath, "metadata_title_embeddings.npz")
	keywordPath := filepath.Join(dataPath, "metadata_keywords_embeddings.npz")

	metadata, err := readTable(metaPath)
	if err != nil {
		return nil, nil, nil, err
	}

	titleEmb, err := ReadNPZKey(titlePath, "embeddings")
	if err != nil {
		return nil, nil, nil, fmt.Errorf("title embeddings: %w", err)
	}
	keywordEmb, err := ReadNPZKey(keywordPath, "embeddings")
	if err != nil {
		return nil, nil, nil, fmt.Errorf("keyword embeddings: %w", err)
	}

	if metadata.Len() != titleEmb.Rows() || metadata.Len() != keywordEmb.Rows() {
		logging.Warn("metadata row count doesn't match embedding counts", logging.Fields{
			"metadata": metadata.Len(),
			"titles":   titleEmb.Rows(),
			"keywords": keywordEmb.Rows(),
		})
	}

	return metadata, titleEmb, keywordEmb, nil
}

func readTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("metadata file not found at %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("metadata file %s is empty", path)
	}

	return &Table{Columns: records[0], Rows: records[1:]}, nil
}

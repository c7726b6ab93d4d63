package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultResolution is the seconds covered by one feature frame. It must
// match the hop the course feature files were computed with; changing it
// changes region quantization system-wide.
const DefaultResolution = 0.12

// DefaultFeatureKey is the feature stream used when none is requested
const DefaultFeatureKey = "embeddings"

// DatasetType identifies one of the three course datasets
type DatasetType string

const (
	DatasetExploration    DatasetType = "exploration"    // Task 2
	DatasetClassification DatasetType = "classification" // Task 3
	DatasetChallenge      DatasetType = "challenge"      // Task 4
)

// AllDatasets lists the datasets in task order
func AllDatasets() []DatasetType {
	return []DatasetType{DatasetExploration, DatasetClassification, DatasetChallenge}
}

// DatasetForTask maps a task number (2-4) to its dataset
func DatasetForTask(task int) (DatasetType, error) {
	switch task {
	case 2:
		return DatasetExploration, nil
	case 3:
		return DatasetClassification, nil
	case 4:
		return DatasetChallenge, nil
	default:
		return "", fmt.Errorf("unknown task number %d", task)
	}
}

// DatasetSpec describes where a dataset comes from and how to recognize
// a complete extraction of it.
type DatasetSpec struct {
	DirName     string   `yaml:"dir_name"`
	ZipName     string   `yaml:"zip_name"`
	DownloadURL string   `yaml:"download_url"`
	SHA256      string   `yaml:"sha256,omitempty"`
	// RequiredEntries are paths relative to the dataset directory that a
	// valid extraction must contain.
	RequiredEntries []string `yaml:"required_entries,omitempty"`
}

// Config carries all tool configuration. It is built explicitly with
// Default() or Load() and passed down; there is no package-level
// singleton.
type Config struct {
	// BaseDataDir is the root for downloaded data (default "data")
	BaseDataDir string `yaml:"base_data_dir"`

	// Resolution is seconds per feature frame
	Resolution float64 `yaml:"resolution"`

	// FeatureKey selects the feature stream inside per-file NPZ archives
	FeatureKey string `yaml:"feature_key"`

	// Datasets is the download registry
	Datasets map[DatasetType]DatasetSpec `yaml:"datasets"`

	// CustomPaths overrides dataset locations (set via SetPath or YAML)
	CustomPaths map[DatasetType]string `yaml:"custom_paths,omitempty"`
}

// Default returns the standard course configuration
func Default() *Config {
	return &Config{
		BaseDataDir: "data",
		Resolution:  DefaultResolution,
		FeatureKey:  DefaultFeatureKey,
		Datasets: map[DatasetType]DatasetSpec{
			DatasetExploration: {
				DirName:     "MLPC2025_dataset",
				ZipName:     "MLPC2025_dataset.zip",
				DownloadURL: "https://cloud.cp.jku.at/index.php/s/YKJqiWjnQQAjiH5?openfile=true",
				RequiredEntries: []string{
					"annotations.csv",
					"annotations_text_embeddings.npz",
					"audio_features",
				},
			},
			DatasetClassification: {
				DirName:     "MLPC2025_classification",
				ZipName:     "MLPC2025_classification.zip",
				DownloadURL: "https://cloud.cp.jku.at/index.php/s/DxtxDck5fSjKAgZ?openfile=true",
				RequiredEntries: []string{
					"annotations.csv",
					"audio_features",
				},
			},
			DatasetChallenge: {
				DirName:     "MLPC2025_test",
				ZipName:     "MLPC2025_test.zip",
				DownloadURL: "https://cloud.cp.jku.at/index.php/s/ae3aAEE3gPJwo6f?openfile=true",
				RequiredEntries: []string{
					"audio_features",
				},
			},
		},
		CustomPaths: make(map[DatasetType]string),
	}
}

// Load reads a YAML config file over the defaults. Fields absent from
// the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Resolution <= 0 {
		return nil, fmt.Errorf("config %s: resolution must be positive, got %g", path, cfg.Resolution)
	}
	if cfg.CustomPaths == nil {
		cfg.CustomPaths = make(map[DatasetType]string)
	}
	return cfg, nil
}

// RawDir is where dataset zips land and extract
func (c *Config) RawDir() string {
	return filepath.Join(c.BaseDataDir, "raw")
}

// DatasetPath resolves the directory of a dataset. Precedence: explicit
// custom path, MLPC_<TYPE>_PATH environment variable, default location
// under the raw data dir.
func (c *Config) DatasetPath(dt DatasetType) string {
	if p, ok := c.CustomPaths[dt]; ok && p != "" {
		return p
	}

	envVar := "MLPC_" + strings.ToUpper(string(dt)) + "_PATH"
	if p := os.Getenv(envVar); p != "" {
		return p
	}

	return filepath.Join(c.RawDir(), c.Datasets[dt].DirName)
}

// SetPath overrides the location of one dataset
func (c *Config) SetPath(dt DatasetType, path string) {
	c.CustomPaths[dt] = path
}

// VerifyDataset reports whether a dataset directory exists and contains
// every required entry. The missing slice names what was not found.
func (c *Config) VerifyDataset(dt DatasetType) (ok bool, missing []string) {
	spec, known := c.Datasets[dt]
	if !known {
		return false, []string{string(dt)}
	}

	dir := c.DatasetPath(dt)
	if _, err := os.Stat(dir); err != nil {
		return false, []string{dir}
	}

	for _, entry := range spec.RequiredEntries {
		if _, err := os.Stat(filepath.Join(dir, entry)); err != nil {
			missing = append(missing, entry)
		}
	}
	return len(missing) == 0, missing
}

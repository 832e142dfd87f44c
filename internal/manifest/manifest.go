// Package manifest loads and validates batch sample sheets.
//
// A sample sheet is a YAML list or a CSV table of samples to process. CSV
// columns beyond the known fields become custom pipeline parameters, matching
// how extra sample-sheet columns are treated by the platform tooling.
package manifest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"icabatch/internal/apperrors"
)

// Sample describes one job: a data folder to upload and the pipeline to run
// on it. Immutable after Load.
type Sample struct {
	SampleID     string            `yaml:"sample_id" json:"sample_id"`
	DataFolder   string            `yaml:"data_folder" json:"data_folder"`
	Pipeline     string            `yaml:"pipeline" json:"pipeline"`
	Reference    string            `yaml:"reference" json:"reference"`
	TargetBed    string            `yaml:"target_bed,omitempty" json:"target_bed,omitempty"`
	CustomParams map[string]string `yaml:"custom_params,omitempty" json:"custom_params,omitempty"`
}

// Load reads a sample sheet from disk. The format is chosen by extension:
// .csv is parsed as CSV, everything else as YAML.
func Load(path string) ([]Sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.IO("manifest.read", err)
	}

	var samples []Sample
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		samples, err = parseCSV(data)
	} else {
		samples, err = parseYAML(data)
	}
	if err != nil {
		return nil, err
	}

	if err := validate(samples); err != nil {
		return nil, err
	}
	return samples, nil
}

func parseYAML(data []byte) ([]Sample, error) {
	var samples []Sample
	if err := yaml.Unmarshal(data, &samples); err != nil {
		return nil, apperrors.Validation("manifest", fmt.Sprintf("malformed sample sheet: %v", err))
	}
	return samples, nil
}

func parseCSV(data []byte) ([]Sample, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, apperrors.Validation("manifest", fmt.Sprintf("malformed sample sheet: %v", err))
	}

	var samples []Sample
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.Validation("manifest", fmt.Sprintf("malformed sample sheet: %v", err))
		}

		var s Sample
		for i, col := range header {
			if i >= len(row) {
				break
			}
			value := strings.TrimSpace(row[i])
			switch strings.ToLower(strings.TrimSpace(col)) {
			case "sample_id":
				s.SampleID = value
			case "data_folder":
				s.DataFolder = value
			case "pipeline":
				s.Pipeline = value
			case "reference":
				s.Reference = value
			case "target_bed":
				s.TargetBed = value
			default:
				if value != "" {
					if s.CustomParams == nil {
						s.CustomParams = make(map[string]string)
					}
					s.CustomParams[col] = value
				}
			}
		}
		samples = append(samples, s)
	}
	return samples, nil
}

// validate checks the whole sheet before any job starts. Validation is
// all-or-nothing: the first violation fails the load.
func validate(samples []Sample) error {
	if len(samples) == 0 {
		return apperrors.Validation("manifest", "sample sheet contains no samples")
	}

	seen := make(map[string]struct{}, len(samples))
	for i, s := range samples {
		if s.SampleID == "" {
			return apperrors.Validation("sample_id", fmt.Sprintf("sample %d: sample_id is required", i))
		}
		if s.DataFolder == "" {
			return apperrors.Validation("data_folder", fmt.Sprintf("sample %s: data_folder is required", s.SampleID))
		}
		if s.Pipeline == "" {
			return apperrors.Validation("pipeline", fmt.Sprintf("sample %s: pipeline is required", s.SampleID))
		}
		if s.Reference == "" {
			return apperrors.Validation("reference", fmt.Sprintf("sample %s: reference is required", s.SampleID))
		}
		if _, dup := seen[s.SampleID]; dup {
			return apperrors.Validation("sample_id", fmt.Sprintf("duplicate sample_id %s", s.SampleID))
		}
		seen[s.SampleID] = struct{}{}
	}
	return nil
}

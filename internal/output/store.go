package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Save writes the record as JSON when path ends in .json and as YAML
// otherwise, creating parent directories.
func Save(path string, record *Record) error {
	content, err := encode(path, record)
	if err != nil {
		return err
	}

	if err := ensureDir(path); err != nil {
		return err
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("failed to write record '%s': %w", path, err)
	}

	return nil
}

// Load reads a record written by Save.
func Load(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read record '%s': %w", path, err)
	}

	var record Record
	if isJSON(path) {
		err = json.Unmarshal(data, &record)
	} else {
		err = yaml.Unmarshal(data, &record)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse record '%s': %w", path, err)
	}
	if record.Address == "" {
		return nil, fmt.Errorf("record '%s' has no address", path)
	}

	return &record, nil
}

func encode(path string, record *Record) ([]byte, error) {
	if isJSON(path) {
		content, err := json.MarshalIndent(record, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return append(content, '\n'), nil
	}

	content, err := yaml.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return content, nil
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// ensureDir ensures the parent directory of a file exists
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads, validates and defaults the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("manifest file not found: %s: %w", path, err)
		}
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}
	return LoadFromBytes(data, path)
}

// LoadFromBytes parses data, using the extension of path to choose between
// JSON and YAML. Unknown extensions are parsed as YAML, which accepts JSON.
//
// The raw document is schema-validated before decoding so unknown fields are
// rejected rather than silently dropped.
func LoadFromBytes(data []byte, path string) (*Manifest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("manifest file is empty")
	}

	jsonData, err := toJSON(data, path)
	if err != nil {
		return nil, err
	}
	if err := ValidateRaw(jsonData); err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(jsonData, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	m.ApplyDefaults()

	if err := m.Training.Validate(); err != nil {
		return nil, err
	}
	if err := m.LoRA.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func toJSON(data []byte, path string) ([]byte, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if !json.Valid(data) {
			var raw any
			err := json.Unmarshal(data, &raw)
			return nil, fmt.Errorf("invalid JSON in manifest: %w", err)
		}
		return data, nil
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid YAML in manifest: %w", err)
	}
	out, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to convert manifest to JSON: %w", err)
	}
	return out, nil
}

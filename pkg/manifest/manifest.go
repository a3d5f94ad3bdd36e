// Package manifest loads training manifests for `gotune train --job`.
//
// A manifest is a YAML or JSON file naming the model, the dataset and the
// training and adapter parameters. It is validated against an embedded JSON
// Schema that rejects unknown fields.
//
//	version: "1.0"
//	name: support-v1
//	dataset_name: support
//	training:
//	  base_model: accounts/fireworks/models/llama-v3p1-8b-instruct
//	  output_model: support-lora
//	  epochs: 2
//	  batch_size: max
//	lora:
//	  r: 16
//	  alpha: 32
package manifest

import "github.com/3leaps/gotune/pkg/params"

// Version is the only supported manifest version.
const Version = "1.0"

// Manifest is a validated training manifest.
type Manifest struct {
	Schema      string                `json:"$schema,omitempty"`
	Version     string                `json:"version"`
	Name        string                `json:"name"`
	DatasetName string                `json:"dataset_name"`
	Training    params.TrainingParams `json:"training"`
	LoRA        params.LoRAParams     `json:"lora"`
}

// ApplyDefaults fills optional parameters. The dataset id defaults to the
// dataset name.
func (m *Manifest) ApplyDefaults() {
	if m.Training.DatasetID == "" {
		m.Training.DatasetID = m.DatasetName
	}
	m.Training = m.Training.WithDefaults()
	m.LoRA = m.LoRA.WithDefaults()
}

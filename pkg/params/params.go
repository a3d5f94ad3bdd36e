// Package params defines the hyperparameters of one supervised fine-tuning run.
package params

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// LoRA rank bounds.
const (
	MinRank = 4
	MaxRank = 64
)

// Defaults for optional parameters.
const (
	DefaultLearningRate = 1e-4
	DefaultEpochs       = 1
	DefaultRank         = 8
	DefaultAlpha        = 8
)

// DefaultTargetModules are the projection layers adapters attach to by default.
var DefaultTargetModules = []string{
	"q_proj", "k_proj", "v_proj", "o_proj",
	"up_proj", "down_proj", "gate_proj",
}

// ErrInvalidParams is wrapped by every FieldError.
var ErrInvalidParams = errors.New("invalid training parameters")

// FieldError names the parameter that failed validation.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidParams, e.Field, e.Message)
}

func (e *FieldError) Unwrap() error {
	return ErrInvalidParams
}

// BatchSize is a positive integer or the "max" sentinel. The zero value is max.
type BatchSize struct {
	n int
}

// MaxBatchSize lets the provider pick the largest batch that fits.
var MaxBatchSize = BatchSize{}

// FixedBatchSize returns a numeric batch size.
func FixedBatchSize(n int) BatchSize {
	return BatchSize{n: n}
}

// ParseBatchSize accepts "max" (case-insensitive, or empty) or a positive integer.
func ParseBatchSize(s string) (BatchSize, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "max") {
		return MaxBatchSize, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return BatchSize{}, &FieldError{Field: "batch_size", Message: fmt.Sprintf("must be a positive integer or \"max\", got %q", s)}
	}
	return FixedBatchSize(n), nil
}

// IsMax reports whether the sentinel is set.
func (b BatchSize) IsMax() bool { return b.n <= 0 }

// Value returns the numeric size, or 0 for max.
func (b BatchSize) Value() int {
	if b.IsMax() {
		return 0
	}
	return b.n
}

func (b BatchSize) String() string {
	if b.IsMax() {
		return "max"
	}
	return strconv.Itoa(b.n)
}

func (b BatchSize) MarshalJSON() ([]byte, error) {
	if b.IsMax() {
		return json.Marshal("max")
	}
	return json.Marshal(b.n)
}

func (b *BatchSize) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		if n <= 0 {
			return &FieldError{Field: "batch_size", Message: "must be positive"}
		}
		*b = FixedBatchSize(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return &FieldError{Field: "batch_size", Message: "must be an integer or \"max\""}
	}
	parsed, err := ParseBatchSize(s)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// TrainingParams configures one SFT run.
type TrainingParams struct {
	BaseModel        string    `json:"base_model"`
	DatasetID        string    `json:"dataset_id"`
	OutputModel      string    `json:"output_model"`
	LearningRate     float64   `json:"learning_rate"`
	Epochs           int       `json:"epochs"`
	BatchSize        BatchSize `json:"batch_size"`
	EarlyStop        bool      `json:"early_stop"`
	MaxContextLength int       `json:"max_context_length,omitempty"`
	Turbo            bool      `json:"turbo"`
}

// WithDefaults fills zero-valued optional fields.
func (p TrainingParams) WithDefaults() TrainingParams {
	if p.LearningRate == 0 {
		p.LearningRate = DefaultLearningRate
	}
	if p.Epochs == 0 {
		p.Epochs = DefaultEpochs
	}
	return p
}

// Validate checks required fields and numeric ranges.
func (p TrainingParams) Validate() error {
	switch {
	case strings.TrimSpace(p.BaseModel) == "":
		return &FieldError{Field: "base_model", Message: "is required"}
	case strings.TrimSpace(p.DatasetID) == "":
		return &FieldError{Field: "dataset_id", Message: "is required"}
	case strings.TrimSpace(p.OutputModel) == "":
		return &FieldError{Field: "output_model", Message: "is required"}
	case p.LearningRate <= 0:
		return &FieldError{Field: "learning_rate", Message: "must be positive"}
	case p.Epochs < 1:
		return &FieldError{Field: "epochs", Message: "must be at least 1"}
	case p.MaxContextLength < 0:
		return &FieldError{Field: "max_context_length", Message: "must be positive when set"}
	}
	return nil
}

// LoRAParams configures the low-rank adapter.
type LoRAParams struct {
	R             int      `json:"r"`
	Alpha         int      `json:"alpha"`
	Dropout       float64  `json:"dropout"`
	TargetModules []string `json:"target_modules"`
}

// DefaultLoRAParams returns the adapter defaults.
func DefaultLoRAParams() LoRAParams {
	return LoRAParams{
		R:             DefaultRank,
		Alpha:         DefaultAlpha,
		TargetModules: append([]string(nil), DefaultTargetModules...),
	}
}

// WithDefaults fills zero-valued fields and de-duplicates target modules,
// preserving first-seen order.
func (l LoRAParams) WithDefaults() LoRAParams {
	if l.R == 0 {
		l.R = DefaultRank
	}
	if l.Alpha == 0 {
		l.Alpha = DefaultAlpha
	}
	if len(l.TargetModules) == 0 {
		l.TargetModules = append([]string(nil), DefaultTargetModules...)
		return l
	}

	seen := make(map[string]struct{}, len(l.TargetModules))
	mods := make([]string, 0, len(l.TargetModules))
	for _, m := range l.TargetModules {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		mods = append(mods, m)
	}
	l.TargetModules = mods
	return l
}

// Validate checks adapter ranges.
func (l LoRAParams) Validate() error {
	switch {
	case l.R < MinRank || l.R > MaxRank:
		return &FieldError{Field: "r", Message: fmt.Sprintf("must be between %d and %d, got %d", MinRank, MaxRank, l.R)}
	case l.Alpha <= 0:
		return &FieldError{Field: "alpha", Message: "must be positive"}
	case l.Dropout < 0 || l.Dropout >= 1:
		return &FieldError{Field: "dropout", Message: fmt.Sprintf("must be in [0, 1), got %g", l.Dropout)}
	case len(l.TargetModules) == 0:
		return &FieldError{Field: "target_modules", Message: "at least one module is required"}
	}
	return nil
}

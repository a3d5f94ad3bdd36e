// Package validate enforces the structural and size rules a training batch
// must satisfy before it is packed.
package validate

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/3leaps/gotune/pkg/example"
)

// Defaults applied when Config fields are zero.
const (
	DefaultMinExamples      = 3
	DefaultMaxContentLength = 4096
)

// ErrValidation is the sentinel wrapped by every ValidationError.
var ErrValidation = errors.New("validation failed")

// Kind classifies a validation failure.
type Kind string

const (
	KindInsufficientData Kind = "insufficient_data"
	KindEmptyMessages    Kind = "empty_messages"
	KindRoleSequence     Kind = "role_sequence"
	KindContentLength    Kind = "content_length"
)

// BatchIndex is the Index reported for batch-level failures.
const BatchIndex = -1

// ValidationError reports the first rule an example batch violated.
type ValidationError struct {
	// Index is the offending example, or BatchIndex.
	Index int

	// Kind classifies the rule that failed.
	Kind Kind

	// Reason is a human-readable description.
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Index == BatchIndex {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%s: example %d: %s", ErrValidation, e.Index, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Config sets the validator limits.
type Config struct {
	// MinExamples is the smallest accepted batch. Zero uses DefaultMinExamples.
	MinExamples int

	// MaxContentLength bounds every message's rune length. Zero uses
	// DefaultMaxContentLength.
	MaxContentLength int
}

// Validator checks example batches.
type Validator struct {
	minExamples int
	maxContent  int
}

// New creates a validator, applying defaults for zero fields.
func New(cfg Config) *Validator {
	v := &Validator{minExamples: cfg.MinExamples, maxContent: cfg.MaxContentLength}
	if v.minExamples <= 0 {
		v.minExamples = DefaultMinExamples
	}
	if v.maxContent <= 0 {
		v.maxContent = DefaultMaxContentLength
	}
	return v
}

// Validate checks the batch and returns the first failure as a
// *ValidationError, or nil.
func (v *Validator) Validate(examples []example.Example) error {
	if len(examples) < v.minExamples {
		return &ValidationError{
			Index:  BatchIndex,
			Kind:   KindInsufficientData,
			Reason: fmt.Sprintf("requires at least %d examples, found %d", v.minExamples, len(examples)),
		}
	}

	for i, ex := range examples {
		if kind, reason := checkRoles(ex.Roles()); reason != "" {
			return &ValidationError{Index: i, Kind: kind, Reason: reason}
		}
		if reason := v.checkLength(ex); reason != "" {
			return &ValidationError{Index: i, Kind: KindContentLength, Reason: reason}
		}
	}
	return nil
}

// checkRoles requires a system/user opener followed by strictly alternating
// user and assistant turns.
func checkRoles(roles []example.Role) (Kind, string) {
	if len(roles) == 0 {
		return KindEmptyMessages, "example has no messages"
	}

	if roles[0] != example.RoleSystem && roles[0] != example.RoleUser {
		return KindRoleSequence, fmt.Sprintf("invalid starting role %q at position 0", roles[0])
	}

	for i := 1; i < len(roles); i++ {
		if roles[i] == roles[i-1] {
			return KindRoleSequence, fmt.Sprintf("consecutive role %q at position %d", roles[i], i)
		}
		if roles[i] != example.RoleUser && roles[i] != example.RoleAssistant {
			return KindRoleSequence, fmt.Sprintf("invalid role %q at position %d", roles[i], i)
		}
	}
	return "", ""
}

func (v *Validator) checkLength(ex example.Example) string {
	for i, m := range ex.Messages {
		if n := utf8.RuneCountInString(m.Content); n > v.maxContent {
			return fmt.Sprintf("message %d content length %d exceeds max context length %d", i, n, v.maxContent)
		}
	}
	return ""
}

// IsValidationError returns true if err is a batch validation failure.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

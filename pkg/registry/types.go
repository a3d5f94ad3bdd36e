package registry

import "time"

// Entry records one trained model.
//
// NOTE: These field names are persisted in the registry file and are part of
// the stable on-disk contract.
type Entry struct {
	Name      string    `json:"name"`
	Provider  string    `json:"provider"`
	ModelID   string    `json:"model_id"`
	BaseModel string    `json:"base_model"`
	TrainedAt time.Time `json:"trained_at"`
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/3leaps/gotune/internal/errors"
	"github.com/3leaps/gotune/pkg/registry"
)

// ModelStore is the read side of the model registry.
type ModelStore interface {
	List() ([]registry.Entry, error)
	Get(name string) (*registry.Entry, error)
}

// ModelsResponse is the /v1/models body.
type ModelsResponse struct {
	Models []registry.Entry `json:"models"`
	Count  int              `json:"count"`
}

// Models serves the registry read-only.
type Models struct {
	Store ModelStore
}

func (h *Models) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Store.List()
	if err != nil {
		apperrors.Respond(w, r, http.StatusInternalServerError, apperrors.CodeInternal, err.Error(), nil)
		return
	}
	if entries == nil {
		entries = []registry.Entry{}
	}
	writeJSON(w, http.StatusOK, ModelsResponse{Models: entries, Count: len(entries)})
}

func (h *Models) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	entry, err := h.Store.Get(name)
	switch {
	case errors.Is(err, registry.ErrEntryNotFound):
		apperrors.Respond(w, r, http.StatusNotFound, apperrors.CodeModelNotFound,
			"model not found", map[string]any{"name": name})
		return
	case err != nil:
		apperrors.Respond(w, r, http.StatusInternalServerError, apperrors.CodeInternal, err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

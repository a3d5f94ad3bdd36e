// Package errors writes the JSON error envelope returned by the HTTP API.
//
// Responses are gofulmen error envelopes wrapped as {"error": {...}}. The
// request id travels as the envelope correlation id and per-error details
// as its context.
package errors

import (
	"context"
	"encoding/json"
	"net/http"

	gferrors "github.com/fulmenhq/gofulmen/errors"
)

// Standard envelope codes.
const (
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeInternal           = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeBadRequest         = "BAD_REQUEST"
	CodeModelNotFound      = "MODEL_NOT_FOUND"
)

// HTTPError decodes the envelope written by WriteEnvelope.
type HTTPError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Path      string         `json:"path,omitempty"`
	Timestamp string         `json:"timestamp"`
	Severity  string         `json:"severity,omitempty"`
	RequestID string         `json:"correlation_id,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// HTTPErrorResponse is the decode type for {"error": {...}}.
type HTTPErrorResponse struct {
	Error HTTPError `json:"error"`
}

type envelopeResponse struct {
	Error *gferrors.ErrorEnvelope `json:"error"`
}

type requestIDKey struct{}

// WithRequestID returns a context carrying the request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the request id stored by WithRequestID, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// NewEnvelope builds the envelope for an error answered on r. Detail values
// the envelope context accepts (strings, numbers, booleans, string lists)
// go to the context; anything else, such as nested maps, stays in details.
func NewEnvelope(r *http.Request, status int, code, message string, details map[string]any) *gferrors.ErrorEnvelope {
	env := gferrors.NewErrorEnvelope(code, message)
	severity := gferrors.SeverityLow
	if status >= http.StatusInternalServerError {
		severity = gferrors.SeverityHigh
	}
	env, _ = env.WithSeverity(severity)

	if r != nil {
		env = env.WithPath(r.URL.Path)
		if id := RequestIDFrom(r.Context()); id != "" {
			env = env.WithCorrelationID(id)
		}
	}

	if len(details) > 0 {
		// Rejected entries are filtered out of Context and reported as an
		// error; they are carried in Details below.
		env, _ = env.WithContext(details)
		rest := map[string]any{}
		for k, v := range details {
			if _, ok := env.Context[k]; !ok {
				rest[k] = v
			}
		}
		if len(env.Context) == 0 {
			env.Context = nil
		}
		if len(rest) > 0 {
			env = env.WithDetails(rest)
		}
	}
	return env
}

// WriteEnvelope writes env with the given status.
func WriteEnvelope(w http.ResponseWriter, env *gferrors.ErrorEnvelope, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelopeResponse{Error: env})
}

// Respond builds an envelope for r and writes it.
func Respond(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	WriteEnvelope(w, NewEnvelope(r, status, code, message, details), status)
}

// NotFoundHandler answers unknown routes.
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	Respond(w, r, http.StatusNotFound, CodeNotFound, "route not found", map[string]any{"path": r.URL.Path})
}

// MethodNotAllowedHandler answers known routes hit with the wrong method.
func MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	Respond(w, r, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed", map[string]any{
		"method": r.Method,
		"path":   r.URL.Path,
	})
}

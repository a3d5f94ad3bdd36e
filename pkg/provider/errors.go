package provider

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by providers, usually wrapped in ProviderError.
var (
	// ErrNotFound indicates the object key does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrAccessDenied indicates the credentials lack permission for the operation.
	ErrAccessDenied = errors.New("access denied")

	// ErrBucketNotFound indicates the bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrInvalidCredentials indicates missing, expired or rejected credentials.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrProviderUnavailable indicates a transient backend or network failure.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrThrottled indicates the backend rejected the request for rate.
	ErrThrottled = errors.New("request throttled")
)

// ProviderError adds operation context to a backend error. Err is usually one
// of the sentinels above so callers can branch with errors.Is.
type ProviderError struct {
	Op       string
	Provider ProviderType
	Bucket   string
	Key      string
	Err      error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Key != "":
		return fmt.Sprintf("%s %s: %s/%s: %v", e.Provider, e.Op, e.Bucket, e.Key, e.Err)
	case e.Bucket != "":
		return fmt.Sprintf("%s %s: %s: %v", e.Provider, e.Op, e.Bucket, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAccessDenied reports whether err wraps ErrAccessDenied.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}

// IsRetryable reports throttling and transient unavailability.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrThrottled) || errors.Is(err, ErrProviderUnavailable)
}

// Package provider defines the object store surface dataset sources are
// staged from.
//
// Providers only list and read. Authentication uses SDK default credential
// chains; providers do not implement custom auth.
package provider

import (
	"context"
	"io"
	"time"
)

// Provider lists and reads objects from a bucket-like namespace.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// List returns one page of objects under opts.Prefix.
	List(ctx context.Context, opts ListOptions) (*ListResult, error)

	// GetObject opens key for reading and returns its size.
	// Returns ErrNotFound if the object does not exist.
	GetObject(ctx context.Context, key string) (io.ReadCloser, int64, error)

	// Close releases any resources held by the provider.
	Close() error
}

// ListOptions configures a List call.
type ListOptions struct {
	// Prefix restricts results to keys starting with this value.
	Prefix string

	// ContinuationToken resumes from a previous ListResult.
	ContinuationToken string

	// MaxKeys caps the page size. Zero uses the provider default.
	MaxKeys int
}

// ListResult is one page of a listing.
type ListResult struct {
	Objects []ObjectSummary

	// ContinuationToken fetches the next page. Empty means done.
	ContinuationToken string

	IsTruncated bool
}

// ObjectSummary is the metadata returned by List.
type ObjectSummary struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// ProviderType identifies a storage backend.
type ProviderType string

const (
	ProviderS3   ProviderType = "s3"
	ProviderFile ProviderType = "file"
)

func (p ProviderType) String() string {
	return string(p)
}

// Walk pages through every object under prefix and calls fn for each one.
// A non-nil error from fn stops the walk and is returned.
func Walk(ctx context.Context, p Provider, prefix string, fn func(ObjectSummary) error) error {
	var token string
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := p.List(ctx, ListOptions{Prefix: prefix, ContinuationToken: token})
		if err != nil {
			return err
		}
		for _, obj := range res.Objects {
			if err := fn(obj); err != nil {
				return err
			}
		}
		if !res.IsTruncated || res.ContinuationToken == "" {
			return nil
		}
		token = res.ContinuationToken
	}
}

package provider

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/3leaps/gotune/pkg/match"
)

var (
	ErrInvalidURI          = errors.New("invalid URI")
	ErrUnsupportedProvider = errors.New("unsupported provider")
	ErrMissingBucket       = errors.New("missing bucket name")
)

// ObjectURI is a parsed source URI.
//
//	s3://bucket/raw/support.csv
//	s3://bucket/raw/
//	s3://bucket/raw/**/*.md
//	file:///srv/exports/**/*.json
//
// For file URIs Bucket holds the base directory ("/" for absolute paths).
type ObjectURI struct {
	Provider ProviderType
	Bucket   string

	// Key is the object key or listing prefix.
	Key string

	// Pattern is the full key glob when the URI contains metacharacters.
	Pattern string
}

func (u *ObjectURI) String() string {
	key := u.Key
	if u.Pattern != "" {
		key = u.Pattern
	}
	if u.Provider == ProviderFile {
		return "file://" + strings.TrimSuffix(u.Bucket, "/") + "/" + key
	}
	return fmt.Sprintf("%s://%s/%s", u.Provider, u.Bucket, key)
}

// IsPattern reports whether the URI selects keys by glob.
func (u *ObjectURI) IsPattern() bool {
	return u.Pattern != ""
}

// IsPrefix reports whether the URI names a prefix rather than one object.
func (u *ObjectURI) IsPrefix() bool {
	return u.Key == "" || strings.HasSuffix(u.Key, "/")
}

// IsURI reports whether s looks like scheme://...
func IsURI(s string) bool {
	return strings.Contains(s, "://")
}

// ParseURI parses an s3:// or file:// source URI.
func ParseURI(uri string) (*ObjectURI, error) {
	if uri == "" {
		return nil, fmt.Errorf("%w: empty URI", ErrInvalidURI)
	}

	// Split manually: url.Parse treats the ? glob as a query delimiter.
	i := strings.Index(uri, "://")
	if i == -1 {
		return nil, fmt.Errorf("%w: missing scheme in %q", ErrInvalidURI, uri)
	}
	scheme := ProviderType(strings.ToLower(uri[:i]))
	rest := uri[i+3:]

	var bucket, key string
	switch scheme {
	case ProviderS3:
		if rest == "" {
			return nil, fmt.Errorf("%w: in %s", ErrMissingBucket, uri)
		}
		bucket, key, _ = strings.Cut(rest, "/")
		if bucket == "" {
			return nil, fmt.Errorf("%w: in %s", ErrMissingBucket, uri)
		}
		if _, err := url.Parse("s3://" + bucket + "/"); err != nil {
			return nil, fmt.Errorf("%w: invalid bucket name %q", ErrInvalidURI, bucket)
		}
	case ProviderFile:
		if !strings.HasPrefix(rest, "/") {
			return nil, fmt.Errorf("%w: file URI must be absolute: %s", ErrInvalidURI, uri)
		}
		bucket, key = "/", strings.TrimPrefix(rest, "/")
	default:
		return nil, fmt.Errorf("%w: %s (supported: s3, file)", ErrUnsupportedProvider, scheme)
	}

	out := &ObjectURI{Provider: scheme, Bucket: bucket}
	if match.IsGlobPattern(key) {
		out.Pattern = key
	}
	out.Key = match.DerivePrefix(key)
	return out, nil
}

package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		want    ObjectURI
		pattern bool
		prefix  bool
	}{
		{
			name: "s3 object",
			uri:  "s3://bucket/raw/support.csv",
			want: ObjectURI{Provider: ProviderS3, Bucket: "bucket", Key: "raw/support.csv"},
		},
		{
			name:   "s3 prefix",
			uri:    "s3://bucket/raw/",
			want:   ObjectURI{Provider: ProviderS3, Bucket: "bucket", Key: "raw/"},
			prefix: true,
		},
		{
			name:   "s3 bucket root",
			uri:    "s3://bucket",
			want:   ObjectURI{Provider: ProviderS3, Bucket: "bucket"},
			prefix: true,
		},
		{
			name:    "s3 glob with question mark",
			uri:     "s3://bucket/raw/part?.md",
			want:    ObjectURI{Provider: ProviderS3, Bucket: "bucket", Key: "raw/", Pattern: "raw/part?.md"},
			pattern: true,
			prefix:  true,
		},
		{
			name:    "file glob",
			uri:     "file:///srv/exports/**/*.json",
			want:    ObjectURI{Provider: ProviderFile, Bucket: "/", Key: "srv/exports/", Pattern: "srv/exports/**/*.json"},
			pattern: true,
			prefix:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseURI(tt.uri)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
			assert.Equal(t, tt.pattern, got.IsPattern())
			assert.Equal(t, tt.prefix, got.IsPrefix())
		})
	}
}

func TestParseURI_Errors(t *testing.T) {
	_, err := ParseURI("")
	assert.ErrorIs(t, err, ErrInvalidURI)

	_, err = ParseURI("raw/support.csv")
	assert.ErrorIs(t, err, ErrInvalidURI)

	_, err = ParseURI("gs://bucket/x")
	assert.ErrorIs(t, err, ErrUnsupportedProvider)

	_, err = ParseURI("s3://")
	assert.ErrorIs(t, err, ErrMissingBucket)

	_, err = ParseURI("s3:///key")
	assert.ErrorIs(t, err, ErrMissingBucket)

	_, err = ParseURI("file://relative/x")
	assert.ErrorIs(t, err, ErrInvalidURI)
}

func TestObjectURI_String(t *testing.T) {
	u, err := ParseURI("s3://bucket/raw/**/*.csv")
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/raw/**/*.csv", u.String())

	f, err := ParseURI("file:///srv/a.csv")
	require.NoError(t, err)
	assert.Equal(t, "file:///srv/a.csv", f.String())
}

func TestProviderError(t *testing.T) {
	err := &ProviderError{Op: "GetObject", Provider: ProviderS3, Bucket: "b", Key: "k", Err: ErrThrottled}
	assert.Equal(t, "s3 GetObject: b/k: request throttled", err.Error())
	assert.True(t, IsRetryable(err))
	assert.False(t, IsNotFound(err))

	bucketOnly := &ProviderError{Op: "List", Provider: ProviderS3, Bucket: "b", Err: ErrAccessDenied}
	assert.Equal(t, "s3 List: b: access denied", bucketOnly.Error())
	assert.True(t, IsAccessDenied(bucketOnly))
}

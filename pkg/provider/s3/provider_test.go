package s3

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/gotune/pkg/provider"
)

type mockAPIError struct {
	code    string
	message string
}

func (e *mockAPIError) Error() string                 { return fmt.Sprintf("%s: %s", e.code, e.message) }
func (e *mockAPIError) ErrorCode() string             { return e.code }
func (e *mockAPIError) ErrorMessage() string          { return e.message }
func (e *mockAPIError) ErrorFault() smithy.ErrorFault { return smithy.FaultUnknown }

var _ smithy.APIError = (*mockAPIError)(nil)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "bucket only", cfg: Config{Bucket: "b"}},
		{name: "static keys", cfg: Config{Bucket: "b", AccessKeyID: "AK", SecretAccessKey: "SK"}},
		{name: "missing bucket", cfg: Config{}, wantErr: "bucket name is required"},
		{name: "half key pair", cfg: Config{Bucket: "b", AccessKeyID: "AK"}, wantErr: "provided together"},
		{name: "secret only", cfg: Config{Bucket: "b", SecretAccessKey: "SK"}, wantErr: "provided together"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Contains(t, ce.Error(), tt.wantErr)
		})
	}
}

func TestNew_ValidationError(t *testing.T) {
	_, err := New(context.Background(), Config{})
	var ce *ConfigError
	assert.ErrorAs(t, err, &ce)
}

func TestWrapError_Types(t *testing.T) {
	p := &Provider{bucket: "datasets"}

	err := p.wrapError("GetObject", "raw/a.csv", &types.NoSuchKey{})
	var pe *provider.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "GetObject", pe.Op)
	assert.Equal(t, provider.ProviderS3, pe.Provider)
	assert.Equal(t, "datasets", pe.Bucket)
	assert.Equal(t, "raw/a.csv", pe.Key)
	assert.ErrorIs(t, err, provider.ErrNotFound)

	assert.ErrorIs(t, p.wrapError("List", "", &types.NoSuchBucket{}), provider.ErrBucketNotFound)
}

func TestWrapError_APIError(t *testing.T) {
	p := &Provider{bucket: "datasets"}
	tests := map[string]error{
		"NoSuchKey":             provider.ErrNotFound,
		"NotFound":              provider.ErrNotFound,
		"NoSuchBucket":          provider.ErrBucketNotFound,
		"AccessDenied":          provider.ErrAccessDenied,
		"Forbidden":             provider.ErrAccessDenied,
		"InvalidAccessKeyId":    provider.ErrInvalidCredentials,
		"SignatureDoesNotMatch": provider.ErrInvalidCredentials,
		"ExpiredToken":          provider.ErrInvalidCredentials,
		"SlowDown":              provider.ErrThrottled,
		"RequestLimitExceeded":  provider.ErrThrottled,
		"ServiceUnavailable":    provider.ErrProviderUnavailable,
		"InternalError":         provider.ErrProviderUnavailable,
	}
	for code, want := range tests {
		t.Run(code, func(t *testing.T) {
			err := p.wrapError("List", "", &mockAPIError{code: code, message: "x"})
			assert.ErrorIs(t, err, want)
		})
	}

	unknown := p.wrapError("List", "", &mockAPIError{code: "Weird"})
	var apiErr smithy.APIError
	assert.True(t, errors.As(unknown, &apiErr))
}

func TestWrapError_FromMessage(t *testing.T) {
	p := &Provider{bucket: "datasets"}
	tests := map[string]error{
		"https response error StatusCode: 403": provider.ErrAccessDenied,
		"https response error StatusCode: 404": provider.ErrNotFound,
		"https response error StatusCode: 429": provider.ErrThrottled,
		"https response error StatusCode: 503": provider.ErrProviderUnavailable,
		"NoSuchBucket: gone":                   provider.ErrBucketNotFound,
	}
	for msg, want := range tests {
		t.Run(msg, func(t *testing.T) {
			assert.ErrorIs(t, p.wrapError("GetObject", "k", errors.New(msg)), want)
		})
	}
}

func TestCleanETag(t *testing.T) {
	assert.Equal(t, "abc", cleanETag(`"abc"`))
	assert.Equal(t, "abc", cleanETag("abc"))
	assert.Equal(t, "", cleanETag(`""`))
}

func TestClampMaxKeys(t *testing.T) {
	assert.Equal(t, 1000, clampMaxKeys(0, DefaultMaxKeys))
	assert.Equal(t, 50, clampMaxKeys(0, 50))
	assert.Equal(t, 10, clampMaxKeys(10, 50))
	assert.Equal(t, MaxAllowedKeys, clampMaxKeys(5000, 50))
}

func TestResolveRegion(t *testing.T) {
	assert.Equal(t, "eu-west-1", resolveRegion("", "eu-west-1"))
	assert.Equal(t, DefaultAWSRegion, resolveRegion("", ""))
	assert.Equal(t, "", resolveRegion("http://localhost:9000", ""))
	assert.Equal(t, "us-west-2", resolveRegion("http://localhost:9000", "us-west-2"))
}

func TestLoadAWSConfig_StaticKeysAndRegion(t *testing.T) {
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "credentials"))
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_REGION", "")

	awsCfg, err := loadAWSConfig(context.Background(), Config{
		Bucket:          "b",
		Region:          "eu-west-1",
		AccessKeyID:     "AKID",
		SecretAccessKey: "secret",
		DisableIMDS:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", awsCfg.Region)

	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKID", creds.AccessKeyID)
}

package s3

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/3leaps/gotune/pkg/provider"
)

// Provider reads dataset sources from AWS S3 and S3-compatible stores.
type Provider struct {
	client  *s3.Client
	bucket  string
	maxKeys int
}

var _ provider.Provider = (*Provider)(nil)

// New creates a provider for cfg.Bucket. Credentials come from the SDK
// default chain unless cfg carries a static key pair.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, &provider.ProviderError{Op: "New", Provider: provider.ProviderS3, Bucket: cfg.Bucket, Err: err}
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ForcePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	maxKeys := cfg.MaxKeys
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	return &Provider{client: client, bucket: cfg.Bucket, maxKeys: maxKeys}, nil
}

func loadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.DisableIMDS {
		opts = append(opts, config.WithEC2IMDSClientEnableState(imds.ClientDisabled))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}
	awsCfg.Region = resolveRegion(cfg.Endpoint, awsCfg.Region)
	return awsCfg, nil
}

// List returns one page of objects under opts.Prefix.
func (p *Provider) List(ctx context.Context, opts provider.ListOptions) (*provider.ListResult, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(p.bucket),
		MaxKeys: aws.Int32(int32(clampMaxKeys(opts.MaxKeys, p.maxKeys))),
	}
	if opts.Prefix != "" {
		input.Prefix = aws.String(opts.Prefix)
	}
	if opts.ContinuationToken != "" {
		input.ContinuationToken = aws.String(opts.ContinuationToken)
	}

	out, err := p.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, p.wrapError("List", opts.Prefix, err)
	}

	res := &provider.ListResult{
		Objects:           make([]provider.ObjectSummary, 0, len(out.Contents)),
		IsTruncated:       aws.ToBool(out.IsTruncated),
		ContinuationToken: aws.ToString(out.NextContinuationToken),
	}
	for _, obj := range out.Contents {
		res.Objects = append(res.Objects, provider.ObjectSummary{
			Key:          aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			ETag:         cleanETag(aws.ToString(obj.ETag)),
			LastModified: aws.ToTime(obj.LastModified),
		})
	}
	return res, nil
}

// GetObject streams an object body. The caller closes the reader.
func (p *Provider) GetObject(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, 0, p.wrapError("GetObject", key, err)
	}
	return out.Body, aws.ToInt64(out.ContentLength), nil
}

func (p *Provider) Close() error {
	return nil
}

// errorCodes maps S3 error codes to provider sentinels. The same codes are
// matched in plain error text when the SDK error carries no API code.
var errorCodes = []struct {
	codes    []string
	sentinel error
}{
	{[]string{"NoSuchKey", "NotFound", "StatusCode: 404"}, provider.ErrNotFound},
	{[]string{"NoSuchBucket"}, provider.ErrBucketNotFound},
	{[]string{"AccessDenied", "Forbidden", "StatusCode: 403"}, provider.ErrAccessDenied},
	{[]string{"InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken"}, provider.ErrInvalidCredentials},
	{[]string{"SlowDown", "Throttling", "RequestLimitExceeded", "StatusCode: 429"}, provider.ErrThrottled},
	{[]string{"ServiceUnavailable", "InternalError", "StatusCode: 503"}, provider.ErrProviderUnavailable},
}

func (p *Provider) wrapError(op, key string, err error) error {
	wrapped := &provider.ProviderError{Op: op, Provider: provider.ProviderS3, Bucket: p.bucket, Key: key, Err: err}

	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	var noSuchBucket *types.NoSuchBucket
	switch {
	case errors.As(err, &notFound), errors.As(err, &noSuchKey):
		wrapped.Err = provider.ErrNotFound
		return wrapped
	case errors.As(err, &noSuchBucket):
		wrapped.Err = provider.ErrBucketNotFound
		return wrapped
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		for _, ec := range errorCodes {
			for _, c := range ec.codes {
				if c == code {
					wrapped.Err = ec.sentinel
					return wrapped
				}
			}
		}
		return wrapped
	}

	msg := err.Error()
	for _, ec := range errorCodes {
		for _, c := range ec.codes {
			if strings.Contains(msg, c) {
				wrapped.Err = ec.sentinel
				return wrapped
			}
		}
	}
	return wrapped
}

// cleanETag strips the quotes S3 puts around ETags.
func cleanETag(etag string) string {
	return strings.Trim(etag, `"`)
}

func clampMaxKeys(requested, fallback int) int {
	if requested <= 0 {
		requested = fallback
	}
	return min(requested, MaxAllowedKeys)
}

// resolveRegion applies the us-east-1 fallback for AWS S3 when neither the
// config, the environment nor the profile set a region. S3-compatible
// endpoints get no default.
func resolveRegion(endpoint, sdkRegion string) string {
	if sdkRegion != "" || endpoint != "" {
		return sdkRegion
	}
	return DefaultAWSRegion
}

// Package s3 implements provider.Provider for AWS S3 and S3-compatible
// storage (MinIO, Wasabi, DigitalOcean Spaces).
package s3

// Config configures an S3 provider.
//
// Authentication follows the AWS SDK v2 default chain: static keys when both
// are set here, then environment, shared credentials and config files, then
// instance or task roles.
type Config struct {
	// Bucket is required.
	Bucket string

	// Region defaults to us-east-1 for AWS when nothing else resolves one.
	Region string

	// Endpoint is set for S3-compatible stores.
	Endpoint string

	// Profile selects a shared config profile.
	Profile string

	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// ForcePathStyle puts the bucket in the URL path. Most S3-compatible
	// stores need it.
	ForcePathStyle bool

	// DisableIMDS skips the EC2 instance metadata lookup for credentials
	// and region. Off-EC2 hosts avoid its connect timeout.
	DisableIMDS bool

	// MaxKeys is the List page size. Values over 1000 are clamped.
	MaxKeys int
}

const (
	DefaultMaxKeys   = 1000
	MaxAllowedKeys   = 1000
	DefaultAWSRegion = "us-east-1"
)

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return &ConfigError{Field: "Bucket", Message: "bucket name is required"}
	}
	if (c.AccessKeyID != "") != (c.SecretAccessKey != "") {
		return &ConfigError{
			Field:   "AccessKeyID/SecretAccessKey",
			Message: "both access key ID and secret access key must be provided together",
		}
	}
	return nil
}

// ConfigError reports an invalid Config field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "s3 config: " + e.Field + ": " + e.Message
}

package engine

import (
	"fmt"
	"log/slog"
	"strings"
)

// S3Config holds configuration for S3-compatible storage (AWS S3, MinIO, etc.)
type S3Config struct {
	AccessKeyID     string // S3 access key ID
	SecretAccessKey string // S3 secret access key
	Endpoint        string // S3 endpoint URL (e.g., "http://localhost:9000" for MinIO, empty for AWS)
	Region          string // S3 region (e.g., "us-east-1")
	UseSSL          bool   // Whether to use SSL/TLS (typically false for MinIO, true for AWS)
	URLStyle        string // URL style: "path" (for MinIO) or "virtual" (for AWS S3)
}

// IsMinIO reports whether the endpoint is a non-AWS S3-compatible service.
func (c *S3Config) IsMinIO() bool {
	return c.Endpoint != "" && !strings.Contains(c.Endpoint, "amazonaws.com")
}

// LogValue keeps the secret key out of logs.
func (c *S3Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("endpoint", c.Endpoint),
		slog.String("region", c.Region),
		slog.Bool("explicit_credentials", c.AccessKeyID != ""),
		slog.String("url_style", c.URLStyle),
	)
}

// secretSQL builds the CREATE SECRET statement DuckDB's httpfs uses for s3:// paths.
// Without explicit credentials the AWS credential chain (env, profile, IMDS/IRSA) is used.
func (c *S3Config) secretSQL() string {
	var b strings.Builder
	b.WriteString("CREATE OR REPLACE SECRET s3_secret (TYPE s3")
	if c.AccessKeyID != "" && c.SecretAccessKey != "" {
		fmt.Fprintf(&b, ", KEY_ID %s", quote(c.AccessKeyID))
		fmt.Fprintf(&b, ", SECRET %s", quote(c.SecretAccessKey))
	} else {
		b.WriteString(", PROVIDER credential_chain")
	}
	if c.Endpoint != "" {
		// DuckDB's S3 secret ENDPOINT expects just host:port, not a full URL
		endpoint := strings.TrimPrefix(c.Endpoint, "http://")
		endpoint = strings.TrimPrefix(endpoint, "https://")
		fmt.Fprintf(&b, ", ENDPOINT %s", quote(endpoint))
	}
	if c.Region != "" {
		fmt.Fprintf(&b, ", REGION %s", quote(c.Region))
	}

	urlStyle := c.URLStyle
	if urlStyle == "" {
		urlStyle = "path"
		if c.Endpoint == "" {
			urlStyle = "vhost"
		}
	}
	if urlStyle == "virtual" {
		urlStyle = "vhost"
	}
	useSSL := c.UseSSL
	if c.Endpoint == "" {
		useSSL = true
	}
	fmt.Fprintf(&b, ", URL_STYLE %s", quote(urlStyle))
	fmt.Fprintf(&b, ", USE_SSL %t", useSSL)
	b.WriteString(")")
	return b.String()
}

// sanitizeError redacts the configured secret from engine error messages
// before they are wrapped and logged.
func (c *S3Config) sanitizeError(err error) error {
	if err == nil || c == nil || c.SecretAccessKey == "" {
		return err
	}
	msg := err.Error()
	if !strings.Contains(msg, c.SecretAccessKey) {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(msg, c.SecretAccessKey, "REDACTED"))
}

package engine

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// NormalizeURI rewrites Hadoop-style s3a:// and s3n:// schemes to s3:// and
// turns file:// URIs into plain absolute paths. Anything else is returned as is.
func NormalizeURI(uri string) string {
	for _, scheme := range []string{"s3a://", "s3n://"} {
		if rest, found := strings.CutPrefix(uri, scheme); found {
			return "s3://" + rest
		}
	}
	if path, found := strings.CutPrefix(uri, "file://"); found {
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	}
	return uri
}

// IsS3 reports whether the URI points at S3-compatible storage.
func IsS3(uri string) bool {
	return strings.HasPrefix(NormalizeURI(uri), "s3://")
}

// JoinURI appends path elements to a base URI using forward slashes for S3
// and the OS separator for local paths.
func JoinURI(base string, elem ...string) string {
	base = NormalizeURI(base)
	if IsS3(base) {
		parts := []string{strings.TrimRight(base, "/")}
		for _, e := range elem {
			parts = append(parts, strings.Trim(e, "/"))
		}
		return strings.Join(parts, "/")
	}
	return filepath.Join(append([]string{base}, elem...)...)
}

// ValidateURI checks that a URI is a usable local path or s3:// location.
func ValidateURI(uri string) error {
	if uri == "" {
		return fmt.Errorf("URI is required")
	}

	if path, found := strings.CutPrefix(uri, "file://"); found {
		if path == "" {
			return fmt.Errorf("file:// path cannot be empty")
		}
		return nil
	}

	normalized := NormalizeURI(uri)
	if strings.HasPrefix(normalized, "s3://") {
		parsed, err := url.Parse(normalized)
		if err != nil {
			return fmt.Errorf("invalid s3:// URI format: %w", err)
		}
		if parsed.Host == "" {
			return fmt.Errorf("s3:// URI must include a bucket name (e.g., s3://bucket-name/path)")
		}
		bucket := parsed.Host
		if len(bucket) < 3 || len(bucket) > 63 {
			return fmt.Errorf("s3 bucket name must be between 3 and 63 characters")
		}
		return nil
	}

	if strings.Contains(uri, "://") {
		return fmt.Errorf("URI must be a local path, file://, or s3:// (got: %q)", uri)
	}
	return nil
}

// SplitS3URI returns the bucket and key prefix of an s3:// URI.
func SplitS3URI(uri string) (bucket, key string, err error) {
	normalized := NormalizeURI(uri)
	path, found := strings.CutPrefix(normalized, "s3://")
	if !found {
		return "", "", fmt.Errorf("not an s3:// URI: %q", uri)
	}
	bucket, key, _ = strings.Cut(path, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("s3:// URI must include a bucket name: %q", uri)
	}
	return bucket, key, nil
}

// RedactedURI redacts credentials from URIs for logging, covering both
// user:password@ userinfo and credential-like query parameters.
func RedactedURI(uri string) string {
	if uri == "" || !strings.Contains(uri, "://") {
		return uri
	}

	parsed, err := url.Parse(uri)
	if err != nil {
		return "[REDACTED: invalid URI]"
	}
	if parsed.User != nil {
		if _, hasPassword := parsed.User.Password(); hasPassword {
			parsed.User = url.UserPassword(parsed.User.Username(), "REDACTED")
		}
	}
	if parsed.RawQuery != "" {
		query, err := url.ParseQuery(parsed.RawQuery)
		if err == nil {
			sensitiveKeys := []string{"accesskey", "secretkey", "password", "token", "credential", "signature"}
			for key := range query {
				keyLower := strings.ToLower(key)
				for _, sensitive := range sensitiveKeys {
					if strings.Contains(keyLower, sensitive) {
						query[key] = []string{"REDACTED"}
					}
				}
			}
			parsed.RawQuery = query.Encode()
		}
	}
	return parsed.String()
}

// quote renders a string as a single-quoted SQL literal.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// quoteIdent renders a double-quoted SQL identifier.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

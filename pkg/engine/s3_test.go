package engine

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEngine_S3Config_SecretSQL(t *testing.T) {
	tests := []struct {
		name string
		cfg  S3Config
		want string
	}{
		{
			name: "aws with explicit credentials",
			cfg: S3Config{
				AccessKeyID:     "AKIA",
				SecretAccessKey: "s3cr'et",
				Region:          "us-west-2",
			},
			want: "CREATE OR REPLACE SECRET s3_secret (TYPE s3, KEY_ID 'AKIA', SECRET 's3cr''et', REGION 'us-west-2', URL_STYLE 'vhost', USE_SSL true)",
		},
		{
			name: "aws credential chain",
			cfg: S3Config{
				Region: "us-east-1",
			},
			want: "CREATE OR REPLACE SECRET s3_secret (TYPE s3, PROVIDER credential_chain, REGION 'us-east-1', URL_STYLE 'vhost', USE_SSL true)",
		},
		{
			name: "minio endpoint",
			cfg: S3Config{
				AccessKeyID:     "minioadmin",
				SecretAccessKey: "minioadmin",
				Endpoint:        "http://127.0.0.1:9000",
				Region:          "us-east-1",
				URLStyle:        "path",
			},
			want: "CREATE OR REPLACE SECRET s3_secret (TYPE s3, KEY_ID 'minioadmin', SECRET 'minioadmin', ENDPOINT '127.0.0.1:9000', REGION 'us-east-1', URL_STYLE 'path', USE_SSL false)",
		},
		{
			name: "virtual style maps to vhost",
			cfg: S3Config{
				Region:   "eu-west-1",
				URLStyle: "virtual",
			},
			want: "CREATE OR REPLACE SECRET s3_secret (TYPE s3, PROVIDER credential_chain, REGION 'eu-west-1', URL_STYLE 'vhost', USE_SSL true)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.cfg.secretSQL())
		})
	}
}

func TestEngine_S3Config_IsMinIO(t *testing.T) {
	require.False(t, (&S3Config{}).IsMinIO())
	require.False(t, (&S3Config{Endpoint: "https://s3.us-west-2.amazonaws.com"}).IsMinIO())
	require.True(t, (&S3Config{Endpoint: "http://localhost:9000"}).IsMinIO())
}

func TestEngine_S3Config_LogValueHidesSecret(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	cfg := &S3Config{
		AccessKeyID:     "AKIAEXAMPLE",
		SecretAccessKey: "very-secret-key",
		Region:          "us-west-2",
	}
	log.Info("configured", "s3", cfg)

	require.NotContains(t, buf.String(), "very-secret-key")
	require.NotContains(t, buf.String(), "AKIAEXAMPLE")
	require.Contains(t, buf.String(), "s3.region=us-west-2")
	require.Contains(t, buf.String(), "s3.explicit_credentials=true")
}

func TestEngine_S3Config_SanitizeError(t *testing.T) {
	cfg := &S3Config{SecretAccessKey: "topsecret"}

	err := cfg.sanitizeError(errors.New("bad secret topsecret rejected"))
	require.EqualError(t, err, "bad secret REDACTED rejected")

	orig := errors.New("unrelated")
	require.Same(t, orig, cfg.sanitizeError(orig))

	var nilCfg *S3Config
	require.Same(t, orig, nilCfg.sanitizeError(orig))
	require.NoError(t, cfg.sanitizeError(nil))
}

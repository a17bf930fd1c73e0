package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/malbeclabs/songlake/pkg/engine"
)

const (
	DefaultSongData   = "s3://udacity-dend/song_data/A/A/A/*.json"
	DefaultLogData    = "s3://udacity-dend/log-data/2018/11/*.json"
	DefaultOutputRoot = "s3://data-lakes-project/"
	DefaultRegion     = "us-west-2"
)

// Config represents the complete configuration for a songlake run.
type Config struct {
	AWS       AWSConfig       `toml:"aws"`
	Input     InputConfig     `toml:"input"`
	Output    OutputConfig    `toml:"output"`
	Engine    EngineConfig    `toml:"engine"`
	Transform TransformConfig `toml:"transform"`
	Metrics   MetricsConfig   `toml:"metrics"`
}

// AWSConfig contains object storage credentials and endpoint settings.
type AWSConfig struct {
	Region          string `toml:"region"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	EndpointURL     string `toml:"endpoint_url"`
	UseSSL          *bool  `toml:"use_ssl,omitempty"`
	URLStyle        string `toml:"url_style"`
}

// LogValue keeps credentials out of logs.
func (c AWSConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("region", c.Region),
		slog.String("endpoint_url", c.EndpointURL),
		slog.Bool("explicit_credentials", c.AccessKeyID != "" && c.SecretAccessKey != ""),
	)
}

type InputConfig struct {
	SongData string `toml:"song_data"`
	LogData  string `toml:"log_data"`
}

type OutputConfig struct {
	Root   string `toml:"root"`
	Verify bool   `toml:"verify"`
}

type EngineConfig struct {
	Threads       int    `toml:"threads"`
	MemoryLimit   string `toml:"memory_limit"`
	TempDirectory string `toml:"temp_directory"`
	Compression   string `toml:"compression"`
}

type TransformConfig struct {
	// DedupeUsers collapses identical users rows.
	DedupeUsers bool `toml:"dedupe_users"`
}

type MetricsConfig struct {
	PushgatewayURL string `toml:"pushgateway_url"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		AWS: AWSConfig{
			Region: DefaultRegion,
		},
		Input: InputConfig{
			SongData: DefaultSongData,
			LogData:  DefaultLogData,
		},
		Output: OutputConfig{
			Root: DefaultOutputRoot,
		},
		Engine: EngineConfig{
			Compression: "snappy",
		},
	}
}

// Load loads configuration from a TOML file, environment variables, and applies defaults.
// A .env file in the working directory, if present, is loaded into the
// environment first without overriding variables that are already set.
// Priority: CLI flags > Environment variables > Config file > Defaults
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// getenv returns the first non-empty variable among names.
func getenv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

func parseBool(name, v string) (bool, error) {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid boolean for %s: %q", name, v)
	}
	return b, nil
}

func (c *Config) applyEnv() error {
	if v := getenv("SONGLAKE_AWS_REGION", "AWS_REGION"); v != "" {
		c.AWS.Region = v
	}
	if v := getenv("SONGLAKE_AWS_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"); v != "" {
		c.AWS.AccessKeyID = v
	}
	if v := getenv("SONGLAKE_AWS_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"); v != "" {
		c.AWS.SecretAccessKey = v
	}
	if v := getenv("SONGLAKE_AWS_ENDPOINT_URL", "AWS_ENDPOINT_URL"); v != "" {
		c.AWS.EndpointURL = v
	}
	if v := os.Getenv("SONGLAKE_AWS_USE_SSL"); v != "" {
		b, err := parseBool("SONGLAKE_AWS_USE_SSL", v)
		if err != nil {
			return err
		}
		c.AWS.UseSSL = &b
	}
	if v := os.Getenv("SONGLAKE_AWS_URL_STYLE"); v != "" {
		c.AWS.URLStyle = v
	}
	if v := os.Getenv("SONGLAKE_INPUT_SONG_DATA"); v != "" {
		c.Input.SongData = v
	}
	if v := os.Getenv("SONGLAKE_INPUT_LOG_DATA"); v != "" {
		c.Input.LogData = v
	}
	if v := os.Getenv("SONGLAKE_OUTPUT_ROOT"); v != "" {
		c.Output.Root = v
	}
	if v := os.Getenv("SONGLAKE_OUTPUT_VERIFY"); v != "" {
		b, err := parseBool("SONGLAKE_OUTPUT_VERIFY", v)
		if err != nil {
			return err
		}
		c.Output.Verify = b
	}
	if v := os.Getenv("SONGLAKE_ENGINE_THREADS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid integer for SONGLAKE_ENGINE_THREADS: %q", v)
		}
		c.Engine.Threads = n
	}
	if v := os.Getenv("SONGLAKE_ENGINE_MEMORY_LIMIT"); v != "" {
		c.Engine.MemoryLimit = v
	}
	if v := os.Getenv("SONGLAKE_ENGINE_TEMP_DIRECTORY"); v != "" {
		c.Engine.TempDirectory = v
	}
	if v := os.Getenv("SONGLAKE_ENGINE_COMPRESSION"); v != "" {
		c.Engine.Compression = v
	}
	if v := os.Getenv("SONGLAKE_TRANSFORM_DEDUPE_USERS"); v != "" {
		b, err := parseBool("SONGLAKE_TRANSFORM_DEDUPE_USERS", v)
		if err != nil {
			return err
		}
		c.Transform.DedupeUsers = b
	}
	if v := os.Getenv("SONGLAKE_METRICS_PUSHGATEWAY_URL"); v != "" {
		c.Metrics.PushgatewayURL = v
	}
	return nil
}

var validCompression = map[string]bool{
	"snappy":       true,
	"gzip":         true,
	"zstd":         true,
	"brotli":       true,
	"lz4":          true,
	"uncompressed": true,
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := engine.ValidateURI(c.Input.SongData); err != nil {
		return fmt.Errorf("invalid input.song_data: %w", err)
	}
	if err := engine.ValidateURI(c.Input.LogData); err != nil {
		return fmt.Errorf("invalid input.log_data: %w", err)
	}
	if err := engine.ValidateURI(c.Output.Root); err != nil {
		return fmt.Errorf("invalid output.root: %w", err)
	}

	if (c.AWS.AccessKeyID == "") != (c.AWS.SecretAccessKey == "") {
		return fmt.Errorf("AWS access_key_id and secret_access_key must be set together")
	}
	if c.usesS3() && c.AWS.Region == "" {
		return fmt.Errorf("AWS region cannot be empty when reading or writing s3://")
	}
	switch strings.ToLower(c.AWS.URLStyle) {
	case "", "path", "vhost", "virtual":
	default:
		return fmt.Errorf("invalid aws.url_style: %s. Must be 'path' or 'vhost'", c.AWS.URLStyle)
	}

	if c.Engine.Threads < 0 {
		return fmt.Errorf("engine.threads cannot be negative")
	}
	if !validCompression[strings.ToLower(c.Engine.Compression)] {
		return fmt.Errorf("invalid engine.compression: %s", c.Engine.Compression)
	}

	return nil
}

// ApplyOverrides applies CLI flag overrides to the configuration.
func (c *Config) ApplyOverrides(songData, logData, outputRoot *string) {
	if songData != nil && *songData != "" {
		c.Input.SongData = *songData
	}
	if logData != nil && *logData != "" {
		c.Input.LogData = *logData
	}
	if outputRoot != nil && *outputRoot != "" {
		c.Output.Root = *outputRoot
	}
}

func (c *Config) usesS3() bool {
	return engine.IsS3(c.Input.SongData) || engine.IsS3(c.Input.LogData) || engine.IsS3(c.Output.Root)
}

// S3Config returns the engine's S3 settings, or nil when no configured URI
// is on S3.
func (c *Config) S3Config() *engine.S3Config {
	if !c.usesS3() {
		return nil
	}

	useSSL := true
	endpoint := c.AWS.EndpointURL
	if rest, found := strings.CutPrefix(endpoint, "http://"); found {
		endpoint = rest
		useSSL = false
	} else if rest, found := strings.CutPrefix(endpoint, "https://"); found {
		endpoint = rest
	}
	endpoint = strings.TrimRight(endpoint, "/")
	if c.AWS.UseSSL != nil {
		useSSL = *c.AWS.UseSSL
	}

	return &engine.S3Config{
		AccessKeyID:     c.AWS.AccessKeyID,
		SecretAccessKey: c.AWS.SecretAccessKey,
		Endpoint:        endpoint,
		Region:          c.AWS.Region,
		UseSSL:          useSSL,
		URLStyle:        c.AWS.URLStyle,
	}
}

// EngineSettings returns the engine session settings.
func (c *Config) EngineSettings() engine.Config {
	return engine.Config{
		Threads:       c.Engine.Threads,
		MemoryLimit:   c.Engine.MemoryLimit,
		TempDirectory: c.Engine.TempDirectory,
		Compression:   strings.ToLower(c.Engine.Compression),
		S3:            c.S3Config(),
	}
}

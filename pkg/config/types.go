package config

import "time"

const (
	// MaxAgeNone disables the freshness check
	MaxAgeNone = "none"

	DefaultMaxAgeSeconds = 300
)

// Config represents the complete application configuration
type Config struct {
	LogLevel     string             `yaml:"log_level"`
	Server       ServerConfig       `yaml:"server"`
	Verification VerificationConfig `yaml:"verification"`
	Queue        QueueConfig        `yaml:"queue"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            int    `yaml:"port"`
	ReadTimeout     string `yaml:"read_timeout"`
	WriteTimeout    string `yaml:"write_timeout"`
	MaxRequestSize  int64  `yaml:"max_request_size"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// VerificationConfig defines how inbound deliveries are authenticated
type VerificationConfig struct {
	SigningSecret SecretRef `yaml:"signing_secret"`
	// NextSigningSecret is accepted alongside SigningSecret while rotating
	NextSigningSecret SecretRef `yaml:"next_signing_secret,omitempty"`
	// MaxAge is a number of seconds or "none"
	MaxAge string `yaml:"max_age"`
}

// QueueConfig holds delivery queue settings
type QueueConfig struct {
	BufferSize int    `yaml:"buffer_size"`
	Workers    int    `yaml:"workers"`
	DedupTTL   string `yaml:"dedup_ttl"`
}

// ParseDuration converts string duration to time.Duration
func (c *Config) ParseDuration(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}

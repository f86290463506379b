package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ricqchet/webhook-receiver/pkg/signature"
	"gopkg.in/yaml.v3"
)

// LoadConfig loads the file named by CONFIG_FILE, applies environment
// overrides and returns it together with the resolved signing secrets
func LoadConfig() (*Config, *ResolvedSecrets, error) {
	env := LoadFromEnv()

	cfg, err := Load(env.ConfigFile)
	if err != nil {
		return nil, nil, err
	}

	if env.Port != 0 {
		cfg.Server.Port = env.Port
	}
	if env.LogLevel != "" {
		cfg.LogLevel = env.LogLevel
	}

	fileSecrets, err := LoadSecretsFromFiles(env.SecretsDir)
	if err != nil {
		return nil, nil, err
	}

	secrets, err := cfg.Verification.ResolveSecrets(fileSecrets)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, secrets, nil
}

// Load reads and parses the YAML configuration file
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes configuration from YAML bytes, applies defaults and
// validates the result
func Parse(data []byte) (*Config, error) {
	expanded := expandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// expandEnv expands ${VAR} references but leaves ${FILE:name} secret
// references for ResolveSecrets
func expandEnv(s string) string {
	return os.Expand(s, func(name string) string {
		if strings.HasPrefix(name, "FILE:") {
			return "${" + name + "}"
		}
		return os.Getenv(name)
	})
}

// applyDefaults sets default values for unspecified configuration options
func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "30s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "30s"
	}
	if c.Server.MaxRequestSize == 0 {
		c.Server.MaxRequestSize = 1024 * 1024 // 1MB
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "30s"
	}

	// Verification defaults
	if c.Verification.MaxAge == "" {
		c.Verification.MaxAge = strconv.Itoa(DefaultMaxAgeSeconds)
	}

	// Queue defaults
	if c.Queue.BufferSize == 0 {
		c.Queue.BufferSize = 100
	}
	if c.Queue.Workers == 0 {
		c.Queue.Workers = 3
	}
	if c.Queue.DedupTTL == "" {
		c.Queue.DedupTTL = "10m"
	}
}

// Validate checks the configuration for required fields and valid values
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got: %d", c.Server.Port)
	}
	if c.Server.MaxRequestSize < 0 {
		return fmt.Errorf("server.max_request_size must not be negative")
	}

	if !c.Verification.SigningSecret.IsSet() {
		return fmt.Errorf("verification.signing_secret is required")
	}
	if _, err := c.VerificationPolicy(); err != nil {
		return err
	}

	if c.Queue.BufferSize < 1 {
		return fmt.Errorf("queue.buffer_size must be positive")
	}
	if c.Queue.Workers < 1 {
		return fmt.Errorf("queue.workers must be positive")
	}

	// Validate duration strings
	durations := map[string]string{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"queue.dedup_ttl":         c.Queue.DedupTTL,
	}

	for name, value := range durations {
		d, err := c.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("invalid %s: must be positive", name)
		}
	}

	return nil
}

// maxAgeSecondsLimit is the largest max_age that fits in a time.Duration
const maxAgeSecondsLimit = math.MaxInt64 / int64(time.Second)

// VerificationPolicy converts verification.max_age into a freshness policy
func (c *Config) VerificationPolicy() (signature.Policy, error) {
	raw := strings.TrimSpace(c.Verification.MaxAge)
	if raw == "" {
		return signature.DefaultPolicy(), nil
	}
	if strings.EqualFold(raw, MaxAgeNone) {
		return signature.NoExpiry(), nil
	}

	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return signature.Policy{}, fmt.Errorf("verification.max_age must be a number of seconds or '%s', got: %s", MaxAgeNone, raw)
	}
	if seconds < 0 {
		return signature.Policy{}, fmt.Errorf("verification.max_age must not be negative, got: %d", seconds)
	}
	if seconds > maxAgeSecondsLimit {
		return signature.Policy{}, fmt.Errorf("verification.max_age must be at most %d seconds, got: %d (use '%s' to disable expiry)", maxAgeSecondsLimit, seconds, MaxAgeNone)
	}

	return signature.WithMaxAge(time.Duration(seconds) * time.Second), nil
}

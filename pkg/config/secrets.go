package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SecretSource says where a secret value comes from
type SecretSource int

const (
	SecretUnset SecretSource = iota
	SecretLiteral
	SecretEnv
	SecretFile
)

const (
	envPrefix  = "env:"
	filePrefix = "${FILE:"
	fileSuffix = "}"
)

func (s SecretSource) String() string {
	switch s {
	case SecretLiteral:
		return "literal"
	case SecretEnv:
		return "env"
	case SecretFile:
		return "file"
	default:
		return "unset"
	}
}

// SecretRef is a secret as written in configuration: a literal value, an
// environment variable reference ("env:NAME") or a mounted secret file
// reference ("${FILE:name}"). It is resolved once at startup.
type SecretRef struct {
	Source SecretSource
	// Value is the literal secret, the variable name or the file name
	Value string
}

// ParseSecretRef reads the scalar form of a secret reference
func ParseSecretRef(raw string) SecretRef {
	switch {
	case raw == "":
		return SecretRef{}
	case strings.HasPrefix(raw, envPrefix):
		return SecretRef{Source: SecretEnv, Value: strings.TrimPrefix(raw, envPrefix)}
	case strings.HasPrefix(raw, filePrefix) && strings.HasSuffix(raw, fileSuffix):
		name := strings.TrimSuffix(strings.TrimPrefix(raw, filePrefix), fileSuffix)
		return SecretRef{Source: SecretFile, Value: name}
	default:
		return SecretRef{Source: SecretLiteral, Value: raw}
	}
}

// UnmarshalYAML accepts either a scalar ("s3cret", "env:NAME",
// "${FILE:name}") or a single-key mapping ({env: NAME}, {file: name},
// {literal: s3cret}).
func (s *SecretRef) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = ParseSecretRef(node.Value)
		return nil
	case yaml.MappingNode:
		var m map[string]string
		if err := node.Decode(&m); err != nil {
			return fmt.Errorf("invalid secret reference: %w", err)
		}
		if len(m) != 1 {
			return fmt.Errorf("secret reference must have exactly one of literal, env, file")
		}
		for key, value := range m {
			switch key {
			case "literal":
				*s = SecretRef{Source: SecretLiteral, Value: value}
			case "env":
				*s = SecretRef{Source: SecretEnv, Value: value}
			case "file":
				*s = SecretRef{Source: SecretFile, Value: value}
			default:
				return fmt.Errorf("unknown secret source '%s'", key)
			}
		}
		return nil
	default:
		return fmt.Errorf("secret reference must be a string or mapping")
	}
}

// IsSet reports whether a reference was configured
func (s SecretRef) IsSet() bool {
	return s.Source != SecretUnset
}

// String never includes the literal secret value
func (s SecretRef) String() string {
	switch s.Source {
	case SecretLiteral:
		return "literal:<redacted>"
	case SecretEnv:
		return envPrefix + s.Value
	case SecretFile:
		return filePrefix + s.Value + fileSuffix
	default:
		return "<unset>"
	}
}

// Resolve produces the secret bytes. fileSecrets holds the contents of the
// mounted secrets directory.
func (s SecretRef) Resolve(fileSecrets map[string]string) ([]byte, error) {
	var value string
	switch s.Source {
	case SecretLiteral:
		value = s.Value
	case SecretEnv:
		value = os.Getenv(s.Value)
	case SecretFile:
		value = fileSecrets[s.Value]
	default:
		return nil, fmt.Errorf("secret is not configured")
	}

	if value == "" {
		return nil, fmt.Errorf("secret %s resolved to an empty value", s)
	}
	return []byte(value), nil
}

// ResolvedSecrets holds the signing secrets in their final form
type ResolvedSecrets struct {
	Current []byte
	// Next is nil unless a rotation is in progress
	Next []byte
}

// ResolveSecrets resolves the verification secrets. An unresolvable
// reference is a fatal configuration error.
func (v VerificationConfig) ResolveSecrets(fileSecrets map[string]string) (*ResolvedSecrets, error) {
	current, err := v.SigningSecret.Resolve(fileSecrets)
	if err != nil {
		return nil, fmt.Errorf("verification.signing_secret: %w", err)
	}

	resolved := &ResolvedSecrets{Current: current}
	if v.NextSigningSecret.IsSet() {
		next, err := v.NextSigningSecret.Resolve(fileSecrets)
		if err != nil {
			return nil, fmt.Errorf("verification.next_signing_secret: %w", err)
		}
		resolved.Next = next
	}

	return resolved, nil
}

// LoadSecretsFromFiles loads secrets from mounted Kubernetes Secret volumes
// Looks for files in the format: /secrets/<secret-name>
// Returns a map of secret names to their values
func LoadSecretsFromFiles(secretsDir string) (map[string]string, error) {
	secrets := make(map[string]string)

	// Check if secrets directory exists
	if _, err := os.Stat(secretsDir); os.IsNotExist(err) {
		// No secrets directory, return empty map
		return secrets, nil
	}

	files, err := os.ReadDir(secretsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets directory: %w", err)
	}

	for _, file := range files {
		// Skip the ..data bookkeeping entries of projected volumes
		if file.IsDir() || strings.HasPrefix(file.Name(), ".") {
			continue
		}

		secretPath := filepath.Join(secretsDir, file.Name())
		content, err := os.ReadFile(secretPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read secret file %s: %w", file.Name(), err)
		}

		// Store secret with trimmed content
		secrets[file.Name()] = strings.TrimSpace(string(content))
	}

	return secrets, nil
}

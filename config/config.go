package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/ed25519"
	"gopkg.in/yaml.v3"
)

// Config represents the complete smolcert validator configuration
type Config struct {
	Trust   TrustConfig   `yaml:"trust" json:"trust"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Server  ServerConfig  `yaml:"server" json:"server"`
}

// TrustConfig defines where trust anchors come from and how they are treated
type TrustConfig struct {
	Anchors      []AnchorConfig `yaml:"anchors" json:"anchors"`
	AnchorFiles  []string       `yaml:"anchor_files" json:"anchor_files"`   // certificate files (raw or PEM)
	Database     string         `yaml:"database" json:"database"`           // sqlite path for the anchor registry
	AnchorPolicy string         `yaml:"anchor_policy" json:"anchor_policy"` // verify, trust
}

// AnchorConfig is an inline trust anchor
type AnchorConfig struct {
	Identity  string `yaml:"identity" json:"identity"`
	PublicKey string `yaml:"public_key" json:"public_key"` // hex encoded ed25519 key
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`           // debug, info, warn, error
	Format    string `yaml:"format" json:"format"`         // json, text
	Output    string `yaml:"output" json:"output"`         // stdout, stderr, file path
	AuditFile string `yaml:"audit_file" json:"audit_file"` // audit log file path

	// AuditRetention bounds the audit records kept in memory for queries
	AuditRetention int `yaml:"audit_retention" json:"audit_retention"`
}

// ServerConfig defines the HTTP validation service
type ServerConfig struct {
	Addr         string        `yaml:"addr" json:"addr"`
	CertFile     string        `yaml:"cert_file" json:"cert_file"`
	KeyFile      string        `yaml:"key_file" json:"key_file"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" json:"max_body_bytes"`
}

// PublicKeyBytes decodes the anchor's hex public key
func (a AnchorConfig) PublicKeyBytes() (ed25519.PublicKey, error) {
	b, err := hex.DecodeString(a.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("anchor %s: invalid hex public key: %w", a.Identity, err)
	}
	if len(b) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("anchor %s: public key must be %d bytes, got %d", a.Identity, ed25519.PublicKeySize, len(b))
	}
	return ed25519.PublicKey(b), nil
}

// Loader provides configuration loading functionality
type Loader struct{}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses configuration from file
func (l *Loader) Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	if err := l.Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	l.setDefaults(&config)

	return &config, nil
}

// Validate checks configuration validity
func (l *Loader) Validate(config *Config) error {
	// At least one anchor source
	if len(config.Trust.Anchors) == 0 && len(config.Trust.AnchorFiles) == 0 && config.Trust.Database == "" {
		return fmt.Errorf("trust: at least one of anchors, anchor_files or database is required")
	}

	seen := make(map[string]bool, len(config.Trust.Anchors))
	for i, a := range config.Trust.Anchors {
		if a.Identity == "" {
			return fmt.Errorf("trust.anchors[%d].identity is required", i)
		}
		if seen[a.Identity] {
			return fmt.Errorf("trust.anchors: duplicate identity %s", a.Identity)
		}
		seen[a.Identity] = true
		if _, err := a.PublicKeyBytes(); err != nil {
			return err
		}
	}

	for _, f := range config.Trust.AnchorFiles {
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("anchor file not found: %s", f)
		}
	}

	switch config.Trust.AnchorPolicy {
	case "verify", "trust", "":
		// valid
	default:
		return fmt.Errorf("invalid anchor policy: %s (must be verify/trust)", config.Trust.AnchorPolicy)
	}

	switch config.Logging.Level {
	case "debug", "info", "warn", "error", "":
		// valid
	default:
		return fmt.Errorf("invalid logging level: %s", config.Logging.Level)
	}

	switch config.Logging.Format {
	case "json", "text", "":
		// valid
	default:
		return fmt.Errorf("invalid logging format: %s", config.Logging.Format)
	}

	// TLS requires both files
	if (config.Server.CertFile == "") != (config.Server.KeyFile == "") {
		return fmt.Errorf("server.cert_file and server.key_file must be set together")
	}
	if config.Server.CertFile != "" {
		if _, err := os.Stat(config.Server.CertFile); err != nil {
			return fmt.Errorf("server.cert_file not found: %s", config.Server.CertFile)
		}
		if _, err := os.Stat(config.Server.KeyFile); err != nil {
			return fmt.Errorf("server.key_file not found: %s", config.Server.KeyFile)
		}
	}

	if config.Logging.AuditRetention < 0 {
		return fmt.Errorf("logging.audit_retention must not be negative")
	}

	if config.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("server.max_body_bytes must not be negative")
	}

	return nil
}

// setDefaults sets default values for optional fields
func (l *Loader) setDefaults(config *Config) {
	if config.Trust.AnchorPolicy == "" {
		config.Trust.AnchorPolicy = "verify"
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "json"
	}
	if config.Logging.Output == "" {
		config.Logging.Output = "stdout"
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8443"
	}
	if config.Server.ReadTimeout == 0 {
		config.Server.ReadTimeout = 15 * time.Second
	}
	if config.Server.WriteTimeout == 0 {
		config.Server.WriteTimeout = 15 * time.Second
	}
	if config.Server.IdleTimeout == 0 {
		config.Server.IdleTimeout = 60 * time.Second
	}
	if config.Server.MaxBodyBytes == 0 {
		config.Server.MaxBodyBytes = 1 << 20
	}
}

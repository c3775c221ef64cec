package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testAnchorKey = "8a88e3dd7409f195fd52db2d3cba5d72ca6709bf1d94121bf3748801b40f6f5c"

func TestLoader_Load_YAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test.yaml")
	anchorFile := filepath.Join(tmpDir, "root.pem")
	os.WriteFile(anchorFile, []byte("cert"), 0644)

	yamlContent := `trust:
  anchors:
    - identity: root-A
      public_key: ` + testAnchorKey + `
  anchor_files:
    - ` + anchorFile + `
  anchor_policy: trust

logging:
  level: debug
  format: text
  audit_file: /var/log/smolcert/audit.log

server:
  addr: ":9000"
  read_timeout: 5s
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}

	loader := NewLoader()
	config, err := loader.Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(config.Trust.Anchors) != 1 || config.Trust.Anchors[0].Identity != "root-A" {
		t.Errorf("Expected anchor root-A, got %+v", config.Trust.Anchors)
	}
	pub, err := config.Trust.Anchors[0].PublicKeyBytes()
	if err != nil {
		t.Fatalf("PublicKeyBytes failed: %v", err)
	}
	if len(pub) != 32 {
		t.Errorf("Expected 32 byte key, got %d", len(pub))
	}
	if config.Trust.AnchorPolicy != "trust" {
		t.Errorf("Expected anchor_policy=trust, got %s", config.Trust.AnchorPolicy)
	}
	if config.Server.Addr != ":9000" {
		t.Errorf("Expected server.addr=:9000, got %s", config.Server.Addr)
	}
	if config.Server.ReadTimeout != 5*time.Second {
		t.Errorf("Expected read_timeout=5s, got %v", config.Server.ReadTimeout)
	}
	if config.Server.WriteTimeout != 15*time.Second {
		t.Errorf("Expected default write_timeout=15s, got %v", config.Server.WriteTimeout)
	}
	if config.Logging.Output != "stdout" {
		t.Errorf("Expected default logging.output=stdout, got %s", config.Logging.Output)
	}
}

func TestLoader_Load_JSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test.json")

	jsonContent := `{
  "trust": {
    "database": "` + filepath.Join(tmpDir, "anchors.db") + `"
  },
  "logging": {
    "level": "warn"
  },
  "server": {
    "max_body_bytes": 4096
  }
}`

	if err := os.WriteFile(configPath, []byte(jsonContent), 0644); err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}

	loader := NewLoader()
	config, err := loader.Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if config.Trust.AnchorPolicy != "verify" {
		t.Errorf("Expected default anchor_policy=verify, got %s", config.Trust.AnchorPolicy)
	}
	if config.Server.MaxBodyBytes != 4096 {
		t.Errorf("Expected max_body_bytes=4096, got %d", config.Server.MaxBodyBytes)
	}
}

func TestLoader_Validate(t *testing.T) {
	loader := NewLoader()
	anchor := AnchorConfig{Identity: "root-A", PublicKey: testAnchorKey}

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid inline anchor",
			config:  &Config{Trust: TrustConfig{Anchors: []AnchorConfig{anchor}}},
			wantErr: false,
		},
		{
			name:    "no anchor source",
			config:  &Config{},
			wantErr: true,
			errMsg:  "at least one of anchors",
		},
		{
			name: "missing identity",
			config: &Config{Trust: TrustConfig{Anchors: []AnchorConfig{
				{PublicKey: testAnchorKey},
			}}},
			wantErr: true,
			errMsg:  "identity is required",
		},
		{
			name:    "duplicate identity",
			config:  &Config{Trust: TrustConfig{Anchors: []AnchorConfig{anchor, anchor}}},
			wantErr: true,
			errMsg:  "duplicate identity",
		},
		{
			name: "bad hex key",
			config: &Config{Trust: TrustConfig{Anchors: []AnchorConfig{
				{Identity: "root-A", PublicKey: "zz"},
			}}},
			wantErr: true,
			errMsg:  "invalid hex public key",
		},
		{
			name: "short key",
			config: &Config{Trust: TrustConfig{Anchors: []AnchorConfig{
				{Identity: "root-A", PublicKey: "abcd"},
			}}},
			wantErr: true,
			errMsg:  "public key must be 32 bytes",
		},
		{
			name:    "missing anchor file",
			config:  &Config{Trust: TrustConfig{AnchorFiles: []string{"/nonexistent/root.pem"}}},
			wantErr: true,
			errMsg:  "anchor file not found",
		},
		{
			name: "invalid anchor policy",
			config: &Config{Trust: TrustConfig{
				Anchors:      []AnchorConfig{anchor},
				AnchorPolicy: "skip",
			}},
			wantErr: true,
			errMsg:  "invalid anchor policy",
		},
		{
			name: "invalid logging level",
			config: &Config{
				Trust:   TrustConfig{Anchors: []AnchorConfig{anchor}},
				Logging: LoggingConfig{Level: "invalid"},
			},
			wantErr: true,
			errMsg:  "invalid logging level",
		},
		{
			name: "negative audit retention",
			config: &Config{
				Trust:   TrustConfig{Anchors: []AnchorConfig{anchor}},
				Logging: LoggingConfig{AuditRetention: -1},
			},
			wantErr: true,
			errMsg:  "audit_retention",
		},
		{
			name: "cert without key",
			config: &Config{
				Trust:  TrustConfig{Anchors: []AnchorConfig{anchor}},
				Server: ServerConfig{CertFile: "server.pem"},
			},
			wantErr: true,
			errMsg:  "must be set together",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := loader.Validate(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && tt.errMsg != "" {
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("Expected error containing '%s', got '%s'", tt.errMsg, err.Error())
				}
			}
		})
	}
}

func TestLoader_SetDefaults(t *testing.T) {
	loader := NewLoader()
	config := &Config{}

	loader.setDefaults(config)

	if config.Trust.AnchorPolicy != "verify" {
		t.Errorf("Expected default anchor_policy verify, got %s", config.Trust.AnchorPolicy)
	}
	if config.Logging.Level != "info" {
		t.Errorf("Expected default logging level info, got %s", config.Logging.Level)
	}
	if config.Logging.Format != "json" {
		t.Errorf("Expected default logging format json, got %s", config.Logging.Format)
	}
	if config.Server.Addr != ":8443" {
		t.Errorf("Expected default addr :8443, got %s", config.Server.Addr)
	}
	if config.Server.IdleTimeout != 60*time.Second {
		t.Errorf("Expected default idle_timeout 60s, got %v", config.Server.IdleTimeout)
	}
	if config.Server.MaxBodyBytes != 1<<20 {
		t.Errorf("Expected default max_body_bytes 1MiB, got %d", config.Server.MaxBodyBytes)
	}
}

func TestLoader_UnsupportedFormat(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test.txt")

	if err := os.WriteFile(configPath, []byte("invalid"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	loader := NewLoader()
	_, err := loader.Load(configPath)
	if err == nil {
		t.Fatal("Expected error for unsupported format")
	}
	if !strings.Contains(err.Error(), "unsupported config format") {
		t.Errorf("Expected 'unsupported config format' error, got: %v", err)
	}
}

func TestLoader_FileNotFound(t *testing.T) {
	loader := NewLoader()
	_, err := loader.Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("Expected error for nonexistent file")
	}
}

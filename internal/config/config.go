package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"taskline/internal/domain"
)

const FileName = "taskline.yml"

// Config models taskline.yml.
type Config struct {
	Storage struct {
		// Path overrides the default <workspace>/.taskline/taskline.db location.
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Server struct {
		Addr         string        `yaml:"addr"`
		BasePath     string        `yaml:"base_path"`
		MCPPath      string        `yaml:"mcp_path"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Telemetry struct {
		Enabled      bool   `yaml:"enabled"`
		ServiceName  string `yaml:"service_name"`
		OTLPEndpoint string `yaml:"otlp_endpoint"`
		Insecure     bool   `yaml:"insecure"`
	} `yaml:"telemetry"`
	Tasks struct {
		DefaultPriority string `yaml:"default_priority"`
	} `yaml:"tasks"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	if !strings.HasPrefix(c.Server.MCPPath, "/") {
		return fmt.Errorf("config.server.mcp_path must start with /")
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		return fmt.Errorf("config.server timeouts must not be negative")
	}
	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config.log.level %q is not one of trace, debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("config.log.format must be 'console' or 'json'")
	}
	if c.Telemetry.Enabled && c.Telemetry.ServiceName == "" {
		return fmt.Errorf("config.telemetry.service_name is required when telemetry is enabled")
	}
	if _, err := domain.ParsePriority(c.Tasks.DefaultPriority); err != nil {
		return fmt.Errorf("config.tasks.default_priority: %w", err)
	}
	return nil
}

// DefaultPriority returns the configured default priority, falling back to
// medium.
func (c *Config) DefaultPriority() domain.Priority {
	p, err := domain.ParsePriority(c.Tasks.DefaultPriority)
	if err != nil {
		return domain.DefaultPriority
	}
	return p
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Load reads the workspace config, or returns Default when the file does
// not exist.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Keys missing
// from data keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// Write stores cfg as YAML at the workspace config path.
func Write(workspace string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(Path(workspace), data, 0o644)
}

const defaultTemplate = `storage:
  path: ""

server:
  addr: 127.0.0.1:8080
  base_path: /v0
  mcp_path: /mcp
  read_timeout: 15s
  write_timeout: 30s

log:
  level: info
  format: console

telemetry:
  enabled: false
  service_name: taskline
  otlp_endpoint: ""
  insecure: true

tasks:
  default_priority: medium
`

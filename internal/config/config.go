package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPort           = 8317
	DefaultHost           = "127.0.0.1"
	DefaultConfigFilename = "config.json"
	DefaultYAMLFilename   = "config.yaml"
	DefaultUpstreamURL    = "https://api.openai.com/v1/chat/completions"

	// UpstreamKeyEnv overrides the configured backend key when set.
	UpstreamKeyEnv = "OPENAI_API_KEY"
)

// Upstream configures the chat-completions backend the adapter fulfils
// requests against.
type Upstream struct {
	BaseURL     string   `json:"base_url,omitempty" yaml:"base_url"`
	APIKey      string   `json:"api_key,omitempty" yaml:"api_key"`
	Model       string   `json:"model,omitempty" yaml:"model"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature"`
	TopP        *float64 `json:"top_p,omitempty" yaml:"top_p"`
	MaxTokens   int      `json:"max_tokens,omitempty" yaml:"max_tokens"`
}

// Config is the full adapter configuration.
type Config struct {
	Host     string   `json:"host,omitempty" yaml:"host"`
	Port     int      `json:"port,omitempty" yaml:"port"`
	APIKey   string   `json:"api_key,omitempty" yaml:"api_key"`
	Upstream Upstream `json:"upstream" yaml:"upstream"`
}

// Manager loads and caches the configuration. YAML takes precedence over
// JSON when both files exist in the base directory.
type Manager struct {
	baseDir     string
	configValue atomic.Value
}

func NewManager(baseDir string) *Manager {
	return &Manager{baseDir: baseDir}
}

func (m *Manager) Load() (*Config, error) {
	path, isYAML := m.resolvePath()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config

	if isYAML {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal yaml config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	applyDefaults(&cfg)

	m.configValue.Store(&cfg)

	return &cfg, nil
}

func (m *Manager) Get() *Config {
	if v := m.configValue.Load(); v != nil {
		return v.(*Config)
	}

	cfg, err := m.Load()
	if err != nil {
		fallback := &Config{}
		applyDefaults(fallback)

		return fallback
	}

	return cfg
}

func (m *Manager) Save(cfg *Config) error {
	if err := os.MkdirAll(m.baseDir, 0750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(m.jsonPath(), data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	m.configValue.Store(cfg)

	return nil
}

// SaveAsYAML writes the configuration to the YAML file, which then takes
// precedence over any JSON config on the next Load.
func (m *Manager) SaveAsYAML(cfg *Config) error {
	if err := os.MkdirAll(m.baseDir, 0750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml config: %w", err)
	}

	if err := os.WriteFile(m.yamlPath(), data, 0600); err != nil {
		return fmt.Errorf("write yaml config file: %w", err)
	}

	m.configValue.Store(cfg)

	return nil
}

func (m *Manager) GetPath() string {
	path, _ := m.resolvePath()
	return path
}

func (m *Manager) Exists() bool {
	_, err := os.Stat(m.GetPath())
	return err == nil
}

func (m *Manager) HasYAML() bool {
	_, err := os.Stat(m.yamlPath())
	return err == nil
}

func (m *Manager) HasJSON() bool {
	_, err := os.Stat(m.jsonPath())
	return err == nil
}

func (m *Manager) jsonPath() string {
	return filepath.Join(m.baseDir, DefaultConfigFilename)
}

func (m *Manager) yamlPath() string {
	return filepath.Join(m.baseDir, DefaultYAMLFilename)
}

func (m *Manager) resolvePath() (path string, isYAML bool) {
	if _, err := os.Stat(m.yamlPath()); err == nil {
		return m.yamlPath(), true
	}

	return m.jsonPath(), false
}

func applyDefaults(cfg *Config) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}

	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}

	if cfg.Upstream.BaseURL == "" {
		cfg.Upstream.BaseURL = DefaultUpstreamURL
	}

	if key := os.Getenv(UpstreamKeyEnv); key != "" && cfg.Upstream.APIKey == "" {
		cfg.Upstream.APIKey = key
	}
}

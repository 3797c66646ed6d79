package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Influencers    []Influencer   `yaml:"influencers"`
	Collect        Collect        `yaml:"collect"`
	Classification Classification `yaml:"classification"`
	Coach          Coach          `yaml:"coach"`
	Export         Export         `yaml:"export"`
	Output         Output         `yaml:"output"`
	Server         Server         `yaml:"server"`
	Logging        Logging        `yaml:"logging"`
}

// Influencer is one tracked sales expert and their content sources.
type Influencer struct {
	Slug           string `yaml:"slug"`
	Name           string `yaml:"name"`
	LinkedIn       string `yaml:"linkedin"`
	YouTubeChannel string `yaml:"youtube_channel"`
}

type Collect struct {
	Serper            SerperConfig `yaml:"serper"`
	RequestsPerSecond float64      `yaml:"requests_per_second"`
	Burst             int          `yaml:"burst"`
}

type SerperConfig struct {
	Enabled         bool   `yaml:"enabled"`
	APIKeyEnv       string `yaml:"api_key_env"`
	ResultsPerQuery int    `yaml:"results_per_query"`
}

type Classification struct {
	Provider       string `yaml:"provider"`
	Model          string `yaml:"model"`
	APIKeyEnv      string `yaml:"api_key_env"`
	OllamaModel    string `yaml:"ollama_model"`
	OllamaURL      string `yaml:"ollama_url"`
	MaxTokens      int    `yaml:"max_tokens"`
	PollInterval   int    `yaml:"poll_interval_seconds"`
	BatchThreshold int    `yaml:"batch_threshold"`
}

type Coach struct {
	Candidates    int     `yaml:"candidates"`
	MinConfidence float64 `yaml:"min_confidence"`
	MaxTokens     int     `yaml:"max_tokens"`
}

type Export struct {
	MinScore int `yaml:"min_score"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for salescoach.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "salescoach")
}

// DataDir returns the XDG data directory for salescoach.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "salescoach")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/salescoach/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'salescoach init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Collect: Collect{
			Serper: SerperConfig{
				Enabled:         true,
				APIKeyEnv:       "SERPER_API_KEY",
				ResultsPerQuery: 10,
			},
			RequestsPerSecond: 0.5,
			Burst:             1,
		},
		Classification: Classification{
			Provider:       "anthropic",
			Model:          "claude-sonnet-4-20250514",
			APIKeyEnv:      "ANTHROPIC_API_KEY",
			OllamaModel:    "qwen2.5:7b",
			OllamaURL:      "http://localhost:11434",
			MaxTokens:      1500,
			PollInterval:   30,
			BatchThreshold: 100,
		},
		Coach: Coach{
			Candidates:    5,
			MinConfidence: 0.7,
			MaxTokens:     1024,
		},
		Export:  Export{MinScore: 7},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// DatabasePath returns the SQLite file path inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.GetDataDir(), "salescoach.db")
}

// FindInfluencer returns the influencer with the given slug, or nil.
func (c *Config) FindInfluencer(slug string) *Influencer {
	for i := range c.Influencers {
		if c.Influencers[i].Slug == slug {
			return &c.Influencers[i]
		}
	}
	return nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

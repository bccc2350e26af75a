// Package config loads the application configuration from YAML with
// environment variable fallbacks for secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// maxConfigSize bounds config files to 1MB.
const maxConfigSize = 1 << 20

// Config represents the application configuration
type Config struct {
	// HTTP server
	Port int `yaml:"port"`

	// Analyzer endpoints (HuggingFace inference style: POST {"inputs": ...})
	Analyzers AnalyzersConfig `yaml:"analyzers"`

	// Fusion and risk tunables
	FusionWindow   time.Duration `yaml:"fusion_window"`
	SampleInterval time.Duration `yaml:"sample_interval"`
	SampleTimeout  time.Duration `yaml:"sample_timeout"`
	Risk           RiskConfig    `yaml:"risk"`

	// Reply generation
	Generator GeneratorConfig `yaml:"generator"`

	// Storage
	Storage StorageConfig `yaml:"storage"`

	// Rate limiting
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// AnalyzersConfig holds the per-modality classifier endpoints.
type AnalyzersConfig struct {
	HuggingFaceKey string        `yaml:"huggingface_key"`
	TextURL        string        `yaml:"text_url"`
	ImageURL       string        `yaml:"image_url"`
	SpeechURL      string        `yaml:"speech_url"`
	TextTimeout    time.Duration `yaml:"text_timeout"`
	ImageTimeout   time.Duration `yaml:"image_timeout"`
	AudioTimeout   time.Duration `yaml:"audio_timeout"`
}

// RiskConfig holds the risk tracker tunables.
type RiskConfig struct {
	WindowSize       int           `yaml:"window_size"`
	WindowAge        time.Duration `yaml:"window_age"`
	HalfLife         time.Duration `yaml:"half_life"`
	PersistenceBonus float64       `yaml:"persistence_bonus"`
	PersistenceCap   float64       `yaml:"persistence_cap"`
}

// GeneratorConfig selects and configures the reply generator.
type GeneratorConfig struct {
	// Provider is "ollama", "openai" or "none" (fallback replies only).
	Provider  string        `yaml:"provider"`
	OllamaURL string        `yaml:"ollama_url"`
	Model     string        `yaml:"model"`
	OpenAIKey string        `yaml:"openai_key"`
	Timeout   time.Duration `yaml:"timeout"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Backend is "memory", "file" or "redis".
	Backend string `yaml:"backend"`
	// Dir is the base directory for the file backend.
	Dir string `yaml:"dir"`
	// Redis settings, used when Backend is "redis".
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
}

// RateLimitConfig bounds the HTTP API.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes", info.Size())
	}

	data, err := os.ReadFile(path) // #nosec G304 - path chosen by operator
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.FusionWindow == 0 {
		c.FusionWindow = 20 * time.Second
	}
	if c.SampleInterval == 0 {
		c.SampleInterval = 20 * time.Second
	}
	if c.SampleTimeout == 0 {
		c.SampleTimeout = 10 * time.Second
	}
	if c.Risk.WindowSize == 0 {
		c.Risk.WindowSize = 20
	}
	if c.Risk.WindowAge == 0 {
		c.Risk.WindowAge = 5 * time.Minute
	}
	if c.Risk.HalfLife == 0 {
		c.Risk.HalfLife = 5 * time.Minute
	}
	if c.Risk.PersistenceBonus == 0 {
		c.Risk.PersistenceBonus = 0.05
	}
	if c.Risk.PersistenceCap == 0 {
		c.Risk.PersistenceCap = 0.15
	}
	if c.Analyzers.TextTimeout == 0 {
		c.Analyzers.TextTimeout = 5 * time.Second
	}
	if c.Analyzers.ImageTimeout == 0 {
		c.Analyzers.ImageTimeout = 10 * time.Second
	}
	if c.Analyzers.AudioTimeout == 0 {
		c.Analyzers.AudioTimeout = 15 * time.Second
	}
	if c.Generator.Provider == "" {
		c.Generator.Provider = "ollama"
	}
	if c.Generator.OllamaURL == "" {
		c.Generator.OllamaURL = "http://localhost:11434"
	}
	if c.Generator.Timeout == 0 {
		c.Generator.Timeout = 20 * time.Second
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "memory"
	}
	if c.RateLimit.RequestsPerSecond == 0 {
		c.RateLimit.RequestsPerSecond = 10
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 20
	}
}

// applyEnv loads secrets from the environment if not set in the file.
func (c *Config) applyEnv() {
	if c.Analyzers.HuggingFaceKey == "" {
		c.Analyzers.HuggingFaceKey = os.Getenv("HUGGINGFACE_API_KEY")
	}
	if c.Generator.OpenAIKey == "" {
		c.Generator.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Storage.RedisPassword == "" {
		c.Storage.RedisPassword = os.Getenv("REDIS_PASSWORD")
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	switch c.Storage.Backend {
	case "memory", "file":
	case "redis":
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown storage backend: %q", c.Storage.Backend)
	}
	switch c.Generator.Provider {
	case "ollama", "none":
	case "openai":
		if c.Generator.OpenAIKey == "" {
			return fmt.Errorf("openai_key is required for the openai provider")
		}
	default:
		return fmt.Errorf("unknown generator provider: %q", c.Generator.Provider)
	}
	if c.Risk.PersistenceBonus < 0 || c.Risk.PersistenceCap < 0 {
		return fmt.Errorf("persistence bonus and cap must be non-negative")
	}
	return nil
}

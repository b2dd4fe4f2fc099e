package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for tripchat.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Google    GoogleConfig    `yaml:"google"`
	Amadeus   AmadeusConfig   `yaml:"amadeus"`
	Assistant AssistantConfig `yaml:"assistant"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"level"` // debug | info | warn | error
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"apiKey"`
	APIBase string `yaml:"apiBase"`
	Model   string `yaml:"model"`
}

type GoogleConfig struct {
	MapsAPIKey string `yaml:"mapsApiKey"`
}

type AmadeusConfig struct {
	APIKey    string `yaml:"apiKey"`
	APISecret string `yaml:"apiSecret"`
}

type AssistantConfig struct {
	MaxRounds    int `yaml:"maxRounds"`
	HistoryLimit int `yaml:"historyLimit"`
	StatusBuffer int `yaml:"statusBuffer"`
}

// DefaultConfigDir returns the default config directory (~/.tripchat).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tripchat"
	}
	return filepath.Join(home, ".tripchat")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Log: LogConfig{
			Level: "info",
		},
		Database: DatabaseConfig{
			Path: filepath.Join(DefaultConfigDir(), "trips.db"),
		},
		OpenAI: OpenAIConfig{
			APIBase: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		Assistant: AssistantConfig{
			MaxRounds:    5,
			HistoryLimit: 20,
			StatusBuffer: 8,
		},
	}
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Database.Path = ExpandPath(cfg.Database.Path)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		hasDefault := strings.Contains(match, ":-")
		defaultVal := ""
		if len(groups) >= 3 {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "log.level must be one of: debug, info, warn, error")
	}
	if cfg.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if cfg.Assistant.MaxRounds < 1 || cfg.Assistant.MaxRounds > 50 {
		errs = append(errs, "assistant.maxRounds must be between 1 and 50")
	}
	if cfg.Assistant.HistoryLimit < 1 {
		errs = append(errs, "assistant.historyLimit must be >= 1")
	}
	if cfg.Assistant.StatusBuffer < 1 {
		errs = append(errs, "assistant.statusBuffer must be >= 1")
	}
	if cfg.Amadeus.APIKey != "" && cfg.Amadeus.APISecret == "" {
		errs = append(errs, "amadeus.apiSecret is required when amadeus.apiKey is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

package config

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	LLM      LLMConfig     `mapstructure:"llm"`
	History  HistoryConfig `mapstructure:"history"`
	Metrics  MetricsConfig `mapstructure:"metrics"`
	LogLevel string        `mapstructure:"log_level"`

	// Personas overrides the system prompt template per context. Keys are
	// lower-cased by viper, lookups must be case-insensitive.
	Personas map[string]string `mapstructure:"personas"`
}

// LLMConfig holds the completion service configuration
type LLMConfig struct {
	BaseURL      string  `mapstructure:"base_url"`
	APIKey       string  `mapstructure:"api_key"`
	Model        string  `mapstructure:"model"`
	MaxTokens    int     `mapstructure:"max_tokens"`
	Temperature  float32 `mapstructure:"temperature"`
	HistoryLimit int     `mapstructure:"history_limit"`
}

// HistoryConfig holds the message store configuration
type HistoryConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// MetricsConfig holds the prometheus endpoint configuration. An empty Addr
// disables the endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

const envPrefix = "CHATLOG"

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.max_tokens", 150)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.history_limit", 5)
	v.SetDefault("history.db_path", "history.db")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("personas", map[string]string{})
}

// Load reads config.yaml from the working directory, or the file named by
// CONFIG_PATH, then applies CHATLOG_* environment overrides. A missing
// config.yaml is not an error; a missing CONFIG_PATH file is.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

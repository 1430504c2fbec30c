// Package config loads application settings from a YAML file and
// SLIDETRAN_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Translation TranslationConfig `mapstructure:"translation"`
	Enhancement EnhancementConfig `mapstructure:"enhancement"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	AllowedOrigin   string        `mapstructure:"allowed_origin"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type StorageConfig struct {
	UploadDir      string `mapstructure:"upload_dir"`
	OutputDir      string `mapstructure:"output_dir"`
	MemoryDB       string `mapstructure:"memory_db"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
}

type TranslationConfig struct {
	Provider string `mapstructure:"provider"` // azure or google

	AzureKey      string `mapstructure:"azure_key"`
	AzureRegion   string `mapstructure:"azure_region"`
	AzureEndpoint string `mapstructure:"azure_endpoint"`

	GoogleCredentials string `mapstructure:"google_credentials"`

	MaxConcurrentBatches int           `mapstructure:"max_concurrent_batches"`
	MaxAttempts          int           `mapstructure:"max_attempts"`
	RetryDelay           time.Duration `mapstructure:"retry_delay"`
}

type EnhancementConfig struct {
	APIKey        string            `mapstructure:"api_key"`
	Endpoint      string            `mapstructure:"endpoint"`
	DefaultModel  string            `mapstructure:"default_model"`
	Models        map[string]string `mapstructure:"models"` // id -> display name
	MaxConcurrent int               `mapstructure:"max_concurrent"`
}

// Load reads configuration from cfgFile (optional, searches the working
// directory for slidetran.yaml when empty) and the environment.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SLIDETRAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("slidetran")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.slidetran")
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing default config file is fine; an explicit one is not.
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.allowed_origin", "*")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("storage.upload_dir", "data/uploads")
	v.SetDefault("storage.output_dir", "data/outputs")
	v.SetDefault("storage.memory_db", "data/memory.db")
	v.SetDefault("storage.max_upload_bytes", int64(50<<20))

	v.SetDefault("translation.provider", "azure")
	// Credential keys need defaults registered so AutomaticEnv can
	// surface them through Unmarshal.
	v.SetDefault("translation.azure_key", "")
	v.SetDefault("translation.azure_region", "")
	v.SetDefault("translation.azure_endpoint", "")
	v.SetDefault("translation.google_credentials", "")
	v.SetDefault("enhancement.api_key", "")
	v.SetDefault("translation.max_concurrent_batches", 6)
	v.SetDefault("translation.max_attempts", 2)
	v.SetDefault("translation.retry_delay", 500*time.Millisecond)

	v.SetDefault("enhancement.endpoint", "https://openrouter.ai/api/v1")
	v.SetDefault("enhancement.default_model", "google/gemini-2.0-flash-001")
	v.SetDefault("enhancement.max_concurrent", 4)
	v.SetDefault("enhancement.models", map[string]string{
		"google/gemini-2.0-flash-001":       "Gemini 2.0 Flash",
		"openai/gpt-4o-mini":                "GPT-4o Mini",
		"anthropic/claude-3.5-haiku":        "Claude 3.5 Haiku",
		"meta-llama/llama-3.3-70b-instruct": "Llama 3.3 70B",
	})
}

package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration settings.
type Config struct {
	// Storage configuration
	Storage StorageConfig `yaml:"storage"`

	// GitHub configuration (commit source)
	GitHub GitHubConfig `yaml:"github"`

	// Result cache configuration
	Cache CacheConfig `yaml:"cache"`

	// Generative backend configuration
	API APIConfig `yaml:"api"`

	// Prompt composition limits
	Prompt PromptConfig `yaml:"prompt"`

	// Output formatting limits
	Output OutputConfig `yaml:"output"`
}

type StorageConfig struct {
	Type        string `yaml:"type"` // "sqlite", "postgres"
	PostgresDSN string `yaml:"postgres_dsn"`
	SQLitePath  string `yaml:"sqlite_path"`
}

type GitHubConfig struct {
	Token          string        `yaml:"token"`
	RateLimit      int           `yaml:"rate_limit"` // requests per second
	MaxWorkers     int           `yaml:"max_workers"`
	CommitCacheTTL time.Duration `yaml:"commit_cache_ttl"`
}

type CacheConfig struct {
	Directory string        `yaml:"directory"`
	TTL       time.Duration `yaml:"ttl"` // validity window for completed results
}

type APIConfig struct {
	Provider       string        `yaml:"provider"` // "openai", "gemini"
	OpenAIKey      string        `yaml:"openai_key"`
	OpenAIModel    string        `yaml:"openai_model"`
	GeminiKey      string        `yaml:"gemini_key"`
	GeminiModel    string        `yaml:"gemini_model"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxAttempts    int           `yaml:"max_attempts"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	RateLimit      int           `yaml:"rate_limit"` // requests per second
	UseKeychain    bool          `yaml:"use_keychain"`
}

type PromptConfig struct {
	MaxFiles      int `yaml:"max_files"`       // file list cap in the digest
	MaxMessageLen int `yaml:"max_message_len"` // commit subject truncation
}

type OutputConfig struct {
	TitleMaxLen int `yaml:"title_max_len"`
}

// Default returns default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Storage: StorageConfig{
			Type:       "sqlite",
			SQLitePath: filepath.Join(homeDir, ".prdraft", "prdraft.db"),
		},
		GitHub: GitHubConfig{
			RateLimit:      10,
			MaxWorkers:     8,
			CommitCacheTTL: 30 * time.Minute,
		},
		Cache: CacheConfig{
			Directory: filepath.Join(homeDir, ".prdraft", "cache"),
			TTL:       24 * time.Hour,
		},
		API: APIConfig{
			Provider:       "openai",
			OpenAIModel:    "gpt-4o-mini",
			GeminiModel:    "gemini-2.0-flash",
			RequestTimeout: 30 * time.Second,
			MaxAttempts:    3,
			RetryBaseDelay: 500 * time.Millisecond,
			RateLimit:      5,
		},
		Prompt: PromptConfig{
			MaxFiles:      20,
			MaxMessageLen: 120,
		},
		Output: OutputConfig{
			TitleMaxLen: 72,
		},
	}
}

// Load reads configuration from file and environment.
// Priority: environment variables > config file > defaults.
func Load(cfgFile string) (*Config, error) {
	// Load .env file if present (ignore errors, it's optional)
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".prdraft"))
		v.AddConfigPath(".prdraft")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("PRDRAFT")
	v.AutomaticEnv()

	cfg := Default()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// No config file: defaults plus environment only
	} else {
		if err := v.Unmarshal(cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides maps well-known environment variables onto the config.
func applyEnvOverrides(cfg *Config) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.API.OpenAIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.API.GeminiKey = key
	}
	if provider := os.Getenv("PRDRAFT_PROVIDER"); provider != "" {
		cfg.API.Provider = provider
	}
	for _, envVar := range []string{"GITHUB_TOKEN", "GH_TOKEN"} {
		if token := os.Getenv(envVar); token != "" {
			cfg.GitHub.Token = token
			break
		}
	}
}

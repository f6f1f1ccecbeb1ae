package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the YAML file picked up from the working directory when
// SCRIPTER_CONFIG is not set.
const DefaultFile = "scripter.yaml"

// ErrMissingCredentials is returned when no Deepgram API key can be found
var ErrMissingCredentials = errors.New("missing Deepgram API key")

// Config holds all configuration for a scripter run
type Config struct {
	// Path of an optional YAML file overriding the values below
	File string `envconfig:"SCRIPTER_CONFIG" yaml:"-"`

	// Deepgram STT API configuration
	DeepgramAPIKey  string            `envconfig:"DEEPGRAM_API_KEY" yaml:"deepgram_api_key"`
	DeepgramKeyFile string            `envconfig:"DEEPGRAM_KEY_FILE" default:"deepgramApiKey" yaml:"deepgram_key_file"` // fallback key file
	DeepgramURL     string            `envconfig:"DEEPGRAM_URL" default:"https://api.deepgram.com/v1/listen" yaml:"deepgram_url"`
	DeepgramModel   string            `envconfig:"DEEPGRAM_MODEL" default:"general" yaml:"deepgram_model"`
	DeepgramParams  map[string]string `envconfig:"DEEPGRAM_PARAMS" yaml:"deepgram_params"` // extra query parameters

	// LibreTranslate configuration
	TranslateHost    string `envconfig:"LIBRETRANSLATE_HOST" default:"https://libretranslate.de" yaml:"translate_host"`
	TranslateAPIKey  string `envconfig:"LIBRETRANSLATE_API_KEY" yaml:"translate_api_key"`
	TranslateWorkers int    `envconfig:"SCRIPTER_TRANSLATE_WORKERS" default:"1" yaml:"translate_workers"`
	SourceLanguage   string `envconfig:"SCRIPTER_SOURCE_LANGUAGE" default:"es" yaml:"source_language"`
	TargetLanguage   string `envconfig:"SCRIPTER_TARGET_LANGUAGE" default:"en" yaml:"target_language"`

	// Local storage
	CacheDir string `envconfig:"SCRIPTER_CACHE_DIR" default:"./_cache" yaml:"cache_dir"`

	// Document rendering
	PlayMargin float64 `envconfig:"SCRIPTER_PLAY_MARGIN" default:"0.2" yaml:"play_margin"` // seconds around each clip

	// Observability configuration
	LogLevel    int    `envconfig:"SCRIPTER_LOG_LEVEL" default:"2" yaml:"log_level"` // -1 quiet, 0 errors, 1 warnings, 2 info
	NoColor     bool   `envconfig:"SCRIPTER_NO_COLOR" default:"false" yaml:"no_color"`
	MetricsFile string `envconfig:"SCRIPTER_METRICS_FILE" yaml:"metrics_file"`
}

// Load reads configuration from the environment, then from the optional YAML
// file. It first attempts to load a .env file if it exists.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	cfg, err := LoadFromEnv()
	if err != nil {
		return nil, err
	}

	path := cfg.File
	if path == "" {
		if _, err := os.Stat(DefaultFile); err != nil {
			return cfg, nil
		}
		path = DefaultFile
	}
	if err := cfg.LoadFile(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env or YAML files
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile overlays the fields set in a YAML file on top of cfg
func (c *Config) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.File = path
	return c.validate()
}

// APIKey resolves the Deepgram credentials: an explicit override wins, then the
// configured key, then the contents of the key file.
func (c *Config) APIKey(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if c.DeepgramAPIKey != "" {
		return c.DeepgramAPIKey, nil
	}
	if c.DeepgramKeyFile == "" {
		return "", ErrMissingCredentials
	}

	b, err := os.ReadFile(c.DeepgramKeyFile)
	if err != nil {
		return "", fmt.Errorf("%w: error reading %s: %v", ErrMissingCredentials, c.DeepgramKeyFile, err)
	}
	key := strings.TrimSpace(string(b))
	if key == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrMissingCredentials, c.DeepgramKeyFile)
	}
	return key, nil
}

func (c *Config) validate() error {
	if c.TranslateWorkers < 1 {
		return fmt.Errorf("SCRIPTER_TRANSLATE_WORKERS must be at least 1, got %d", c.TranslateWorkers)
	}
	if c.PlayMargin < 0 {
		return fmt.Errorf("SCRIPTER_PLAY_MARGIN must not be negative, got %v", c.PlayMargin)
	}
	if c.LogLevel < -1 || c.LogLevel > 2 {
		return fmt.Errorf("SCRIPTER_LOG_LEVEL must be between -1 and 2, got %d", c.LogLevel)
	}
	return nil
}

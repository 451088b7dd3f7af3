package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for EduQuery
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Backend BackendConfig `mapstructure:"backend"`
	Upload  UploadConfig  `mapstructure:"upload"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Session SessionConfig `mapstructure:"session"`
	UI      UIConfig      `mapstructure:"ui"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// BackendConfig points at the external answering service
type BackendConfig struct {
	APIURL  string        `mapstructure:"api_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// UploadConfig restricts what can be selected for upload
type UploadConfig struct {
	MaxSize      int64    `mapstructure:"max_size"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

// NotifyConfig holds toast behaviour
type NotifyConfig struct {
	DismissAfter time.Duration `mapstructure:"dismiss_after"`
	Buffer       int           `mapstructure:"buffer"`
}

// SessionConfig holds browser workspace settings
type SessionConfig struct {
	IdleTTL    time.Duration `mapstructure:"idle_ttl"`
	CookieName string        `mapstructure:"cookie_name"`
}

// UIConfig holds page text
type UIConfig struct {
	Title       string `mapstructure:"title"`
	Placeholder string `mapstructure:"placeholder"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// EDUQUERY_BACKEND_API_URL overrides backend.api_url
	v.SetEnvPrefix("EDUQUERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.allow_origins", []string{"*"})

	v.SetDefault("backend.api_url", "http://127.0.0.1:8000/api/")
	v.SetDefault("backend.timeout", 2*time.Minute)

	v.SetDefault("upload.max_size", 25<<20)
	v.SetDefault("upload.allowed_types", []string{"pdf"})

	v.SetDefault("notify.dismiss_after", 5*time.Second)
	v.SetDefault("notify.buffer", 16)

	v.SetDefault("session.idle_ttl", 30*time.Minute)
	v.SetDefault("session.cookie_name", "eduquery_session")

	v.SetDefault("ui.title", "EduQuery AI")
	v.SetDefault("ui.placeholder", "Ask something from your uploaded notes...")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Validate checks the values Load cannot default sensibly
func (c *Config) Validate() error {
	if c.Backend.APIURL == "" {
		return errors.New("backend.api_url is required")
	}
	u, err := url.Parse(c.Backend.APIURL)
	if err != nil {
		return fmt.Errorf("invalid backend.api_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid backend.api_url %q: scheme must be http or https", c.Backend.APIURL)
	}
	if c.Backend.Timeout <= 0 {
		return errors.New("backend.timeout must be positive")
	}
	if c.Notify.DismissAfter <= 0 {
		return errors.New("notify.dismiss_after must be positive")
	}
	if c.Session.IdleTTL <= 0 {
		return errors.New("session.idle_ttl must be positive")
	}
	if c.Upload.MaxSize <= 0 {
		return errors.New("upload.max_size must be positive")
	}
	return nil
}

// Address returns the server address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// AllowsType reports whether a file type may be selected for upload.
// An empty allow-list accepts everything.
func (u UploadConfig) AllowsType(fileType string) bool {
	if len(u.AllowedTypes) == 0 {
		return true
	}
	for _, t := range u.AllowedTypes {
		if strings.EqualFold(strings.TrimPrefix(t, "."), fileType) {
			return true
		}
	}
	return false
}

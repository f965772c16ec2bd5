package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix              = "TRACKER"
	defaultHTTPAddress     = "0.0.0.0:8080"
	defaultDatabasePath    = "tracker.db"
	defaultLogLevel        = "info"
	defaultAuthIssuer      = "tracker-auth"
	defaultAuthAudience    = "tracker-api"
	defaultLeaseDuration   = 10 * time.Second
	defaultDailyAttemptCap = 5
	defaultOpenAIModel     = "gpt-4o-mini"
	defaultOpenAITimeout   = 30 * time.Second
)

// AppConfig captures runtime configuration for the tracker API server.
type AppConfig struct {
	HTTPAddress     string
	DatabasePath    string
	LogLevel        string
	AuthSigningKey  string
	AuthIssuer      string
	AuthAudience    string
	LeaseDuration   time.Duration
	DailyAttemptCap int
	OpenAIAPIKey    string
	OpenAIModel     string
	OpenAITimeout   time.Duration
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.issuer", defaultAuthIssuer)
	configViper.SetDefault("auth.audience", defaultAuthAudience)
	configViper.SetDefault("lease.duration", defaultLeaseDuration)
	configViper.SetDefault("daily.attempt_cap", defaultDailyAttemptCap)
	configViper.SetDefault("openai.model", defaultOpenAIModel)
	configViper.SetDefault("openai.timeout", defaultOpenAITimeout)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:     configViper.GetString("http.address"),
		DatabasePath:    configViper.GetString("database.path"),
		LogLevel:        configViper.GetString("log.level"),
		AuthSigningKey:  configViper.GetString("auth.signing_secret"),
		AuthIssuer:      configViper.GetString("auth.issuer"),
		AuthAudience:    configViper.GetString("auth.audience"),
		LeaseDuration:   configViper.GetDuration("lease.duration"),
		DailyAttemptCap: configViper.GetInt("daily.attempt_cap"),
		OpenAIAPIKey:    configViper.GetString("openai.api_key"),
		OpenAIModel:     configViper.GetString("openai.model"),
		OpenAITimeout:   configViper.GetDuration("openai.timeout"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.AuthSigningKey) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.OpenAIAPIKey) == "" {
		return fmt.Errorf("openai.api_key is required")
	}
	if c.LeaseDuration <= 0 {
		return fmt.Errorf("lease.duration must be positive")
	}
	if c.DailyAttemptCap <= 0 {
		return fmt.Errorf("daily.attempt_cap must be positive")
	}
	if c.OpenAITimeout <= 0 {
		return fmt.Errorf("openai.timeout must be positive")
	}
	return nil
}

package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                 = "PRIORITIES"
	defaultHTTPAddress        = "0.0.0.0:1999"
	defaultStorageDriver      = StorageDriverSQLite
	defaultDatabasePath       = "priorities.db"
	defaultRedisURL           = "redis://localhost:6379/0"
	defaultLogLevel           = "info"
	defaultLogEncoding        = "json"
	defaultCookieName         = "priorities_session"
	defaultSessionIssuer      = "priorities-auth"
	defaultSummaryEndpoint    = "https://api.cerebras.ai/v1/chat/completions"
	defaultSummaryModel       = "gpt-oss-120b"
	defaultSummaryTimeoutSecs = 30
	defaultMailboxSize        = 64
	defaultSendBuffer         = 32
)

// Storage drivers accepted by storage.driver.
const (
	StorageDriverSQLite = "sqlite"
	StorageDriverRedis  = "redis"
	StorageDriverMemory = "memory"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress          string
	StorageDriver        string
	DatabasePath         string
	RedisURL             string
	LogLevel             string
	LogEncoding          string
	SessionSigningSecret string
	SessionCookieName    string
	SessionIssuer        string
	SummaryEndpoint      string
	SummaryAPIKey        string
	SummaryModel         string
	SummaryTimeout       time.Duration
	RoomMailboxSize      int
	ConnectionSendBuffer int
	AllowedOrigins       []string
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
	configViper.SetDefault("storage.driver", defaultStorageDriver)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("redis.url", defaultRedisURL)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.encoding", defaultLogEncoding)
	configViper.SetDefault("session.cookie_name", defaultCookieName)
	configViper.SetDefault("session.issuer", defaultSessionIssuer)
	configViper.SetDefault("summary.endpoint", defaultSummaryEndpoint)
	configViper.SetDefault("summary.model", defaultSummaryModel)
	configViper.SetDefault("summary.timeout_seconds", defaultSummaryTimeoutSecs)
	configViper.SetDefault("rooms.mailbox_size", defaultMailboxSize)
	configViper.SetDefault("rooms.send_buffer", defaultSendBuffer)
	configViper.SetDefault("cors.origins", []string{"*"})
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:          configViper.GetString("http.address"),
		StorageDriver:        strings.ToLower(strings.TrimSpace(configViper.GetString("storage.driver"))),
		DatabasePath:         configViper.GetString("database.path"),
		RedisURL:             configViper.GetString("redis.url"),
		LogLevel:             configViper.GetString("log.level"),
		LogEncoding:          configViper.GetString("log.encoding"),
		SessionSigningSecret: configViper.GetString("session.signing_secret"),
		SessionCookieName:    configViper.GetString("session.cookie_name"),
		SessionIssuer:        configViper.GetString("session.issuer"),
		SummaryEndpoint:      configViper.GetString("summary.endpoint"),
		SummaryAPIKey:        configViper.GetString("summary.api_key"),
		SummaryModel:         configViper.GetString("summary.model"),
		SummaryTimeout:       time.Duration(configViper.GetInt("summary.timeout_seconds")) * time.Second,
		RoomMailboxSize:      configViper.GetInt("rooms.mailbox_size"),
		ConnectionSendBuffer: configViper.GetInt("rooms.send_buffer"),
		AllowedOrigins:       splitOrigins(configViper.GetStringSlice("cors.origins")),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// SessionsEnabled reports whether websocket upgrades require a session token.
func (c AppConfig) SessionsEnabled() bool {
	return strings.TrimSpace(c.SessionSigningSecret) != ""
}

// SummaryEnabled reports whether an AI summary provider is configured.
func (c AppConfig) SummaryEnabled() bool {
	return strings.TrimSpace(c.SummaryAPIKey) != ""
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	switch c.StorageDriver {
	case StorageDriverSQLite:
		if strings.TrimSpace(c.DatabasePath) == "" {
			return fmt.Errorf("database.path is required")
		}
	case StorageDriverRedis:
		if strings.TrimSpace(c.RedisURL) == "" {
			return fmt.Errorf("redis.url is required")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("storage.driver must be one of %s, %s, %s", StorageDriverSQLite, StorageDriverRedis, StorageDriverMemory)
	}
	if c.SessionsEnabled() && strings.TrimSpace(c.SessionCookieName) == "" {
		return fmt.Errorf("session.cookie_name is required")
	}
	if c.SessionsEnabled() && allowsAnyOrigin(c.AllowedOrigins) {
		return fmt.Errorf("cors.origins must list explicit origins when session.signing_secret is set")
	}
	if c.SummaryTimeout <= 0 {
		return fmt.Errorf("summary.timeout_seconds must be positive")
	}
	if c.RoomMailboxSize <= 0 {
		return fmt.Errorf("rooms.mailbox_size must be positive")
	}
	if c.ConnectionSendBuffer <= 0 {
		return fmt.Errorf("rooms.send_buffer must be positive")
	}
	return nil
}

func allowsAnyOrigin(origins []string) bool {
	return len(origins) == 0 || slices.Contains(origins, "*")
}

// splitOrigins accepts both list values and a single comma separated string,
// which is how the env binding delivers them.
func splitOrigins(values []string) []string {
	origins := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}
	return origins
}

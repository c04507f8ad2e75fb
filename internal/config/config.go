package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Remote service-desk endpoints
	Remote RemoteConfig

	// Credential configuration
	Credentials CredentialConfig

	// Sync timing configuration
	Sync SyncConfig

	// Push channel configuration
	Channel ChannelConfig

	// Local UI API configuration
	UI UIConfig

	// Rate limiting configuration
	RateLimit RateLimitConfig

	// Logging configuration
	Logging LoggingConfig

	// Application metadata
	App AppConfig
}

// RemoteConfig holds the service-desk server addresses
type RemoteConfig struct {
	APIURL         string
	WSURL          string
	RequestTimeout time.Duration
}

// CredentialConfig holds token configuration
type CredentialConfig struct {
	AccessToken    string
	RefreshToken   string
	JWTSecret      string // optional; enables signature verification
	TokenStore     string // memory, keyring
	KeyringService string
}

// SyncConfig holds heartbeat, polling and highlight timings
type SyncConfig struct {
	HeartbeatInterval  time.Duration
	HeartbeatTimeout   time.Duration
	PollInterval       time.Duration
	HighlightDuration  time.Duration
	AlertDuration      time.Duration
	RefreshRateLimit   time.Duration
	TokenCheckInterval time.Duration
	TrackTickets       bool
	TrackAppointments  bool
	TrackChats         bool
}

// ChannelConfig holds websocket dial configuration
type ChannelConfig struct {
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	HandshakeTimeout  time.Duration
	ReadBufferSize    int
	WriteBufferSize   int
}

// UIConfig holds local HTTP server configuration
type UIConfig struct {
	Enabled         bool
	Addr            string
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// RateLimitConfig holds rate limiting configuration for the UI API
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	BurstSize         int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string
	Version     string
	Environment string
}

// Load loads configuration from environment variables. envFiles are passed
// to godotenv; with none given the default .env is tried.
func Load(envFiles ...string) (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(envFiles...); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := &Config{
		Remote: RemoteConfig{
			APIURL:         strings.TrimRight(getEnvOrDefault("API_URL", "http://localhost:8080/api/v1"), "/"),
			WSURL:          getEnvOrDefault("WS_URL", "ws://localhost:8080/ws"),
			RequestTimeout: getDurationOrDefault("API_REQUEST_TIMEOUT", 15*time.Second),
		},
		Credentials: CredentialConfig{
			AccessToken:    os.Getenv("ACCESS_TOKEN"),
			RefreshToken:   os.Getenv("REFRESH_TOKEN"),
			JWTSecret:      os.Getenv("JWT_SECRET"),
			TokenStore:     getEnvOrDefault("TOKEN_STORE", "memory"),
			KeyringService: getEnvOrDefault("KEYRING_SERVICE", "service-desk-realtime"),
		},
		Sync: SyncConfig{
			HeartbeatInterval:  getDurationOrDefault("HEARTBEAT_INTERVAL", 30*time.Second),
			HeartbeatTimeout:   getDurationOrDefault("HEARTBEAT_TIMEOUT", 15*time.Second),
			PollInterval:       getDurationOrDefault("POLL_INTERVAL", 30*time.Second),
			HighlightDuration:  getDurationOrDefault("HIGHLIGHT_DURATION", 6*time.Second),
			AlertDuration:      getDurationOrDefault("ALERT_DURATION", 5*time.Second),
			RefreshRateLimit:   getDurationOrDefault("REFRESH_RATE_LIMIT", 2*time.Second),
			TokenCheckInterval: getDurationOrDefault("TOKEN_CHECK_INTERVAL", 2*time.Minute),
			TrackTickets:       getBoolOrDefault("TRACK_TICKETS", true),
			TrackAppointments:  getBoolOrDefault("TRACK_APPOINTMENTS", true),
			TrackChats:         getBoolOrDefault("TRACK_CHATS", true),
		},
		Channel: ChannelConfig{
			ReconnectAttempts: getIntOrDefault("RECONNECT_ATTEMPTS", 5),
			ReconnectDelay:    getDurationOrDefault("RECONNECT_DELAY", 1*time.Second),
			HandshakeTimeout:  getDurationOrDefault("WS_HANDSHAKE_TIMEOUT", 10*time.Second),
			ReadBufferSize:    getIntOrDefault("WS_READ_BUFFER_SIZE", 1024),
			WriteBufferSize:   getIntOrDefault("WS_WRITE_BUFFER_SIZE", 1024),
		},
		UI: UIConfig{
			Enabled:         getBoolOrDefault("UI_ENABLED", true),
			Addr:            getEnvOrDefault("UI_ADDR", "127.0.0.1:7878"),
			AllowedOrigins:  getStringSliceOrDefault("UI_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
			ReadTimeout:     getDurationOrDefault("UI_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("UI_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getDurationOrDefault("UI_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationOrDefault("UI_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getBoolOrDefault("RATE_LIMIT_ENABLED", true),
			RequestsPerSecond: getFloatOrDefault("RATE_LIMIT_RPS", 10),
			BurstSize:         getIntOrDefault("RATE_LIMIT_BURST", 20),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
		App: AppConfig{
			Name:        getEnvOrDefault("APP_NAME", "service-desk-realtime"),
			Version:     getEnvOrDefault("APP_VERSION", "dev"),
			Environment: getEnvOrDefault("APP_ENV", "development"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []string

	// Required fields
	if _, err := url.ParseRequestURI(c.Remote.APIURL); err != nil {
		errs = append(errs, "API_URL must be an absolute URL")
	}

	wsURL, err := url.Parse(c.Remote.WSURL)
	if err != nil || (wsURL.Scheme != "ws" && wsURL.Scheme != "wss") {
		errs = append(errs, "WS_URL must use the ws or wss scheme")
	}

	switch c.Credentials.TokenStore {
	case "memory", "keyring":
	default:
		errs = append(errs, "TOKEN_STORE must be one of memory, keyring")
	}

	// Security validations
	if c.App.Environment == "production" {
		if wsURL != nil && wsURL.Scheme == "ws" {
			errs = append(errs, "WS_URL must use wss in production")
		}
	}

	// Logical validations
	if c.Sync.HeartbeatInterval <= 0 || c.Sync.PollInterval <= 0 {
		errs = append(errs, "HEARTBEAT_INTERVAL and POLL_INTERVAL must be positive")
	}

	if c.Sync.HeartbeatTimeout <= 0 || c.Sync.HeartbeatTimeout >= c.Sync.HeartbeatInterval {
		errs = append(errs, "HEARTBEAT_TIMEOUT must be positive and shorter than HEARTBEAT_INTERVAL")
	}

	if c.Channel.ReconnectAttempts < 0 {
		errs = append(errs, "RECONNECT_ATTEMPTS cannot be negative")
	}

	if len(errs) > 0 {
		return errors.New("configuration errors:\n  - " + strings.Join(errs, "\n  - "))
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// Helper functions

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// String returns a redacted string representation of the config (safe for logging)
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{API: %s, WS: %s, Tokens: %s, Store: %s, UI: %s, Environment: %s}",
		c.Remote.APIURL,
		redactURL(c.Remote.WSURL),
		redactSecret(c.Credentials.AccessToken),
		c.Credentials.TokenStore,
		c.UI.Addr,
		c.App.Environment,
	)
}

// redactURL strips userinfo and query from a URL
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "[REDACTED]"
	}
	u.User = nil
	u.RawQuery = ""
	return u.String()
}

func redactSecret(s string) string {
	if s == "" {
		return "[UNSET]"
	}
	return "[REDACTED]"
}

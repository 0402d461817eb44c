package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// Development LiveKit credentials, matching `livekit-server --dev`.
const (
	DevAPIKey    = "devkey"
	DevAPISecret = "secret"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	// Comma-separated origins allowed for CORS and WebSocket upgrades; "*"
	// allows any.
	AllowedOrigins string `env:"ALLOWED_ORIGINS" default:"*"`

	LiveKitURL       string        `env:"LIVEKIT_URL" default:"ws://localhost:7880"`
	LiveKitAPIKey    string        `env:"LIVEKIT_API_KEY" default:"devkey"`
	LiveKitAPISecret string        `env:"LIVEKIT_API_SECRET" default:"secret"`
	TokenTTL         time.Duration `env:"TOKEN_TTL" default:"6h"`
	RoomPrefix       string        `env:"ROOM_PREFIX" default:"basketball"`

	RedisURL string `env:"REDIS_URL"`

	SubscriberQueueSize int           `env:"SUBSCRIBER_QUEUE_SIZE" default:"100"`
	WSPingInterval      time.Duration `env:"WS_PING_INTERVAL" default:"30s"`
	WSPongWait          time.Duration `env:"WS_PONG_WAIT" default:"60s"`
	WSWriteWait         time.Duration `env:"WS_WRITE_WAIT" default:"5s"`

	MaxConnections      int64   `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
	MaxConnectionsPerIP int     `env:"MAX_CONNECTIONS_PER_IP" default:"50"`
	ConnectionRateLimit float64 `env:"CONNECTION_RATE_PER_IP" default:"10"`
	ConnectionRateBurst int     `env:"CONNECTION_RATE_BURST" default:"20"`

	TokenRateLimit float64 `env:"TOKEN_RATE_LIMIT" default:"5"`
	TokenRateBurst int     `env:"TOKEN_RATE_BURST" default:"10"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Origins splits AllowedOrigins into trimmed, non-empty entries.
func (c *Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// IsProduction reports whether APP_ENV is "production".
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// UsesDevCredentials reports whether the LiveKit key pair is the
// development default.
func (c *Config) UsesDevCredentials() bool {
	return c.LiveKitAPIKey == DevAPIKey || c.LiveKitAPISecret == DevAPISecret
}

func validate(cfg *Config) error {
	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a number between 1 and 65535, got %q", cfg.Port)
	}

	switch cfg.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	if len(cfg.Origins()) == 0 {
		return errors.New("ALLOWED_ORIGINS must not be empty")
	}

	if cfg.LiveKitAPIKey == "" || cfg.LiveKitAPISecret == "" {
		return errors.New("LIVEKIT_API_KEY and LIVEKIT_API_SECRET must not be empty")
	}
	if cfg.IsProduction() && cfg.UsesDevCredentials() {
		return errors.New("LIVEKIT_API_KEY and LIVEKIT_API_SECRET must be set in production")
	}
	if u, err := url.Parse(cfg.LiveKitURL); err != nil || u.Host == "" {
		return fmt.Errorf("LIVEKIT_URL must be an absolute URL, got %q", cfg.LiveKitURL)
	}
	if cfg.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	if strings.TrimSpace(cfg.RoomPrefix) == "" {
		return errors.New("ROOM_PREFIX must not be empty")
	}

	if cfg.SubscriberQueueSize < 1 {
		return errors.New("SUBSCRIBER_QUEUE_SIZE must be at least 1")
	}
	if cfg.WSPingInterval < 0 {
		return errors.New("WS_PING_INTERVAL must not be negative")
	}
	if cfg.WSPingInterval > 0 && cfg.WSPongWait <= cfg.WSPingInterval {
		return errors.New("WS_PONG_WAIT must be longer than WS_PING_INTERVAL")
	}
	if cfg.WSWriteWait <= 0 {
		return errors.New("WS_WRITE_WAIT must be positive")
	}

	if cfg.MaxConnections < 1 || cfg.MaxConnectionsPerIP < 1 {
		return errors.New("MAX_WEBSOCKET_CONNECTIONS and MAX_CONNECTIONS_PER_IP must be at least 1")
	}
	if cfg.ConnectionRateLimit <= 0 || cfg.ConnectionRateBurst < 1 {
		return errors.New("CONNECTION_RATE_PER_IP must be positive and CONNECTION_RATE_BURST at least 1")
	}

	if cfg.TokenRateLimit <= 0 || cfg.TokenRateBurst < 1 {
		return errors.New("TOKEN_RATE_LIMIT must be positive and TOKEN_RATE_BURST at least 1")
	}

	return nil
}

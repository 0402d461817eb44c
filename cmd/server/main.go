package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rwhssa/rwhs-basketball-livestream/internal/adapter/httpserver"
	"github.com/rwhssa/rwhs-basketball-livestream/internal/adapter/livekit"
	"github.com/rwhssa/rwhs-basketball-livestream/internal/adapter/metrics"
	"github.com/rwhssa/rwhs-basketball-livestream/internal/adapter/redis"
	"github.com/rwhssa/rwhs-basketball-livestream/internal/adapter/websocket"
	"github.com/rwhssa/rwhs-basketball-livestream/internal/app"
	"github.com/rwhssa/rwhs-basketball-livestream/internal/broadcast"
	"github.com/rwhssa/rwhs-basketball-livestream/internal/domain"
	"github.com/rwhssa/rwhs-basketball-livestream/internal/platform/config"
	"github.com/rwhssa/rwhs-basketball-livestream/internal/platform/logging"
	"github.com/rwhssa/rwhs-basketball-livestream/internal/platform/version"
	"github.com/rwhssa/rwhs-basketball-livestream/internal/scores"
)

const shutdownTimeout = 10 * time.Second

type shutdownTargets struct {
	server      *httpserver.Server
	websocket   *websocket.Handler
	hub         *broadcast.Hub
	stopRelay   context.CancelFunc
	redisClient *goredis.Client
}

func runGracefulShutdown(t shutdownTargets) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// viewers first: hijacked connections are not tracked by the http server
		if err := t.websocket.Shutdown(shutdownCtx); err != nil {
			slog.Error("WebSocket shutdown error", "error", err)
		}
		if err := t.server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		t.hub.Close()

		if t.stopRelay != nil {
			t.stopRelay()
		}
		if t.redisClient != nil {
			if err := t.redisClient.Close(); err != nil {
				slog.Error("Failed to close Redis client", "error", err)
			}
		}

		close(done)
	}()

	return done
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRedis(ctx context.Context, cfg *config.Config, clock clockwork.Clock, redisMetrics *metrics.RedisMetrics) *goredis.Client {
	client, err := redis.NewClient(ctx, cfg.RedisURL, clock,
		redis.NewMetricsHook(redisMetrics),
		redis.NewCircuitBreakerHook(redis.DefaultBreakerSettings(), redisMetrics),
	)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().Version)
	if cfg.UsesDevCredentials() {
		slog.Warn("Using development LiveKit credentials")
	}

	reg := metrics.NewRegistry()
	hubMetrics := metrics.NewHubMetrics(reg)
	wsMetrics := metrics.NewWebSocketMetrics(reg)
	httpMetrics := metrics.NewHTTPMetrics(reg)
	redisMetrics := metrics.NewRedisMetrics(reg)

	store := scores.NewStore()
	hub := broadcast.NewHub(cfg.SubscriberQueueSize, hubMetrics)

	// Redis is optional; without it the instance serves its own viewers only.
	var (
		redisClient  *goredis.Client
		stopRelay    context.CancelFunc
		healthChecks []httpserver.HealthCheck
		appSvc       *app.Service
	)
	if cfg.RedisURL != "" {
		redisClient = setupRedis(context.Background(), cfg, clock, redisMetrics)
		relay := redis.NewRelay(redisClient, redisMetrics)
		appSvc = app.NewService(store, hub, relay)

		var relayCtx context.Context
		relayCtx, stopRelay = context.WithCancel(context.Background())
		if err := relay.Start(relayCtx, appSvc.ApplyRemote); err != nil {
			slog.Error("Failed to subscribe to score relay", "error", err)
			os.Exit(1)
		}
		slog.Info("Score relay started", "channel", redis.ScoresChannel, "origin", relay.Origin())

		healthChecks = append(healthChecks, httpserver.HealthCheck{
			Name: "redis",
			Check: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		})
	} else {
		// pass nil explicitly to avoid a typed-nil relay
		appSvc = app.NewService(store, hub, nil)
	}

	var issuer domain.CredentialIssuer = livekit.NewIssuer(livekit.Config{
		APIKey:     cfg.LiveKitAPIKey,
		APISecret:  cfg.LiveKitAPISecret,
		URL:        cfg.LiveKitURL,
		TTL:        cfg.TokenTTL,
		RoomPrefix: cfg.RoomPrefix,
	}, clock)

	limits := websocket.NewConnectionLimits(websocket.LimitsConfig{
		MaxConnections:      cfg.MaxConnections,
		MaxConnectionsPerIP: cfg.MaxConnectionsPerIP,
		ConnectionsPerSec:   cfg.ConnectionRateLimit,
		Burst:               cfg.ConnectionRateBurst,
	}, clock)
	wsHandler := websocket.NewHandler(hub, store, clock,
		broadcast.SessionConfig{
			PingInterval: cfg.WSPingInterval,
			PongWait:     cfg.WSPongWait,
			WriteWait:    cfg.WSWriteWait,
		},
		websocket.NewCheckOrigin(cfg.Origins(), !cfg.IsProduction()),
		limits,
		wsMetrics,
	)

	srv := httpserver.NewServer(cfg, clock, appSvc, issuer, wsHandler, metrics.Handler(reg), httpMetrics, healthChecks)

	done := runGracefulShutdown(shutdownTargets{
		server:      srv,
		websocket:   wsHandler,
		hub:         hub,
		stopRelay:   stopRelay,
		redisClient: redisClient,
	})

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}

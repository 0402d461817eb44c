package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rwhssa/rwhs-basketball-livestream/internal/adapter/metrics"
	"github.com/rwhssa/rwhs-basketball-livestream/internal/domain"
	"github.com/rwhssa/rwhs-basketball-livestream/internal/platform/config"
)

// --- Mock implementations ---

type mockScoreService struct {
	submitFn  func(ctx context.Context, submitted domain.ScoreSnapshot) (*domain.ScoreSnapshot, error)
	currentFn func() (*domain.ScoreSnapshot, bool)
}

func (m *mockScoreService) SubmitScores(ctx context.Context, submitted domain.ScoreSnapshot) (*domain.ScoreSnapshot, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, submitted)
	}
	return domain.NewScoreSnapshot(submitted.Phase, submitted.Scores)
}

func (m *mockScoreService) CurrentScores() (*domain.ScoreSnapshot, bool) {
	if m.currentFn != nil {
		return m.currentFn()
	}
	return nil, false
}

type mockCredentialIssuer struct {
	issueFn func(ctx context.Context, phase, requestedType string) (*domain.Grant, error)
}

func (m *mockCredentialIssuer) Issue(ctx context.Context, phase, requestedType string) (*domain.Grant, error) {
	if m.issueFn != nil {
		return m.issueFn(ctx, phase, requestedType)
	}
	if strings.TrimSpace(phase) == "" {
		return nil, domain.ErrPhaseRequired
	}
	return &domain.Grant{Token: "signed." + requestedType, Room: "basketball-" + phase}, nil
}

// --- Test server ---

type testServerOpts struct {
	credentials  domain.CredentialIssuer
	websocket    http.Handler
	httpMetrics  *metrics.HTTPMetrics
	metrics      http.Handler
	healthChecks []HealthCheck
	clock        clockwork.Clock
	mutateConfig func(*config.Config)
}

type testServerOption func(*testServerOpts)

func withCredentials(issuer domain.CredentialIssuer) testServerOption {
	return func(o *testServerOpts) { o.credentials = issuer }
}

func withWebSocket(h http.Handler) testServerOption {
	return func(o *testServerOpts) { o.websocket = h }
}

func withMetrics(m *metrics.HTTPMetrics, handler http.Handler) testServerOption {
	return func(o *testServerOpts) {
		o.httpMetrics = m
		o.metrics = handler
	}
}

func withHealthChecks(checks ...HealthCheck) testServerOption {
	return func(o *testServerOpts) { o.healthChecks = checks }
}

func withClock(clock clockwork.Clock) testServerOption {
	return func(o *testServerOpts) { o.clock = clock }
}

func withConfig(mutate func(*config.Config)) testServerOption {
	return func(o *testServerOpts) { o.mutateConfig = mutate }
}

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:              "development",
		Port:                "8080",
		LogLevel:            "info",
		LogFormat:           "text",
		AllowedOrigins:      "*",
		LiveKitURL:          "ws://localhost:7880",
		LiveKitAPIKey:       config.DevAPIKey,
		LiveKitAPISecret:    config.DevAPISecret,
		TokenTTL:            time.Hour,
		RoomPrefix:          "basketball",
		SubscriberQueueSize: 100,
		WSPingInterval:      30 * time.Second,
		WSPongWait:          60 * time.Second,
		WSWriteWait:         5 * time.Second,
		MaxConnections:      100,
		MaxConnectionsPerIP: 10,
		ConnectionRateLimit: 10,
		ConnectionRateBurst: 20,
		TokenRateLimit:      100,
		TokenRateBurst:      100,
	}
}

func newTestServer(t *testing.T, app scoreService, opts ...testServerOption) *Server {
	t.Helper()

	o := &testServerOpts{
		credentials: &mockCredentialIssuer{},
		websocket: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}),
		clock: clockwork.NewFakeClock(),
	}
	for _, opt := range opts {
		opt(o)
	}

	cfg := testConfig()
	if o.mutateConfig != nil {
		o.mutateConfig(cfg)
	}

	return NewServer(cfg, o.clock, app, o.credentials, o.websocket, o.metrics, o.httpMetrics, o.healthChecks)
}

func doRequest(t *testing.T, srv *Server, method, target string, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func healthOK(_ context.Context) error { return nil }

func healthErr(msg string) func(context.Context) error {
	return func(_ context.Context) error { return fmt.Errorf("%s", msg) }
}

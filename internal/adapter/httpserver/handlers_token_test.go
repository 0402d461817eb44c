package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/rwhssa/rwhs-basketball-livestream/internal/adapter/livekit"
	"github.com/rwhssa/rwhs-basketball-livestream/internal/domain"
	"github.com/rwhssa/rwhs-basketball-livestream/internal/platform/config"
	apperrors "github.com/rwhssa/rwhs-basketball-livestream/internal/platform/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken_Success(t *testing.T) {
	var gotPhase, gotType string
	issuer := &mockCredentialIssuer{
		issueFn: func(_ context.Context, phase, requestedType string) (*domain.Grant, error) {
			gotPhase, gotType = phase, requestedType
			return &domain.Grant{Token: "jwt", Room: "basketball-final", URL: "ws://localhost:7880"}, nil
		},
	}
	srv := newTestServer(t, &mockScoreService{}, withCredentials(issuer))

	rec := doRequest(t, srv, http.MethodGet, "/api/token?phase=final&type=camera", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"token":"jwt","room":"basketball-final","url":"ws://localhost:7880"}`, rec.Body.String())
	assert.Equal(t, "final", gotPhase)
	assert.Equal(t, "camera", gotType)
}

func TestToken_MissingPhase(t *testing.T) {
	srv := newTestServer(t, &mockScoreService{})

	rec := doRequest(t, srv, http.MethodGet, "/api/token?type=admin", "", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec.Body.Bytes())
	assert.Equal(t, apperrors.TypeValidation, resp.Type)
	assert.Equal(t, "phase is required", resp.Error)
	assert.Equal(t, "phase", resp.Context["param"])
}

func TestToken_IssuerFailure(t *testing.T) {
	issuer := &mockCredentialIssuer{
		issueFn: func(context.Context, string, string) (*domain.Grant, error) {
			return nil, errors.New("signing key unavailable")
		},
	}
	srv := newTestServer(t, &mockScoreService{}, withCredentials(issuer))

	rec := doRequest(t, srv, http.MethodGet, "/api/token?phase=final&type=output", "", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "failed to issue token", decodeError(t, rec.Body.Bytes()).Error)
	assert.NotContains(t, rec.Body.String(), "signing key")
}

func TestToken_RateLimited(t *testing.T) {
	srv := newTestServer(t, &mockScoreService{}, withConfig(func(c *config.Config) {
		c.TokenRateLimit = 0.01
		c.TokenRateBurst = 1
	}))

	rec := doRequest(t, srv, http.MethodGet, "/api/token?phase=final&type=camera", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/token?phase=final&type=camera", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	resp := decodeError(t, rec.Body.Bytes())
	assert.Equal(t, apperrors.TypeRateLimited, resp.Type)
	assert.Equal(t, "rate limit exceeded", resp.Error)
}

func TestToken_RateLimitDoesNotApplyToScores(t *testing.T) {
	srv := newTestServer(t, &mockScoreService{}, withConfig(func(c *config.Config) {
		c.TokenRateLimit = 0.01
		c.TokenRateBurst = 1
	}))

	for range 3 {
		rec := doRequest(t, srv, http.MethodGet, "/api/scores", "", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestToken_WithLiveKitIssuer(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 14, 18, 30, 0, 0, time.UTC))
	issuer := livekit.NewIssuer(livekit.Config{
		APIKey:     "APIkey",
		APISecret:  "secret",
		URL:        "wss://live.example.com",
		TTL:        time.Hour,
		RoomPrefix: "rwhs",
	}, clock)
	srv := newTestServer(t, &mockScoreService{}, withCredentials(issuer), withClock(clock))

	rec := doRequest(t, srv, http.MethodGet, "/api/token?phase=final&type=admin", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var grant domain.Grant
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &grant))
	assert.Equal(t, "rwhs-final", grant.Room)

	claims := &livekit.Claims{}
	_, err := jwt.ParseWithClaims(grant.Token, claims, func(*jwt.Token) (any, error) {
		return []byte("secret"), nil
	}, jwt.WithTimeFunc(clock.Now))
	require.NoError(t, err)
	assert.Equal(t, "APIkey", claims.Issuer)
	require.NotNil(t, claims.Video)
	assert.Equal(t, "rwhs-final", claims.Video.Room)
	require.NotNil(t, claims.Video.RoomAdmin)
	assert.True(t, *claims.Video.RoomAdmin)
}

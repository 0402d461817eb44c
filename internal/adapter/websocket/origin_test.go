package websocket

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCheckOrigin(t *testing.T) {
	allowed := []string{"https://scores.example.com", "https://overlay.example.com:8443/path"}

	tests := []struct {
		name          string
		allowed       []string
		origin        string
		isDevelopment bool
		want          bool
	}{
		{"wildcard allows any", []string{"*"}, "https://evil.com", false, true},
		{"wildcard among others", []string{"https://a.example.com", "*"}, "https://b.example.com", false, true},

		{"empty origin", allowed, "", false, true},
		{"listed origin", allowed, "https://scores.example.com", false, true},
		{"listed origin case-insensitive", allowed, "https://Scores.Example.com", false, true},
		{"listed origin with port, path ignored", allowed, "https://overlay.example.com:8443", false, true},

		{"different host", allowed, "https://evil.com", false, false},
		{"different port", allowed, "https://scores.example.com:9090", false, false},
		{"http instead of https", allowed, "http://scores.example.com", false, false},
		{"subdomain", allowed, "https://sub.scores.example.com", false, false},

		{"localhost dev", allowed, "http://localhost:5173", true, true},
		{"127.0.0.1 dev", allowed, "http://127.0.0.1:3000", true, true},
		{"localhost prod rejected", allowed, "http://localhost:5173", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewCheckOrigin(tt.allowed, tt.isDevelopment)
			r, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, checker(r))
		})
	}
}

func TestExtractOrigin(t *testing.T) {
	assert.Equal(t, "https://scores.example.com", extractOrigin("https://scores.example.com/live?x=1"))
	assert.Equal(t, "http://localhost:8080", extractOrigin(" http://LOCALHOST:8080 "))
	assert.Empty(t, extractOrigin("not a url"))
	assert.Empty(t, extractOrigin(""))
}

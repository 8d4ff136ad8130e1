package supabase

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prolink/prolink-go"
)

// Config holds the project connection settings.
type Config struct {
	// BaseURL is the project URL (e.g., "https://abc123.supabase.co").
	BaseURL string

	// AnonKey is the project's public API key, sent on every request.
	AnonKey string

	// HTTPClient overrides the transport (optional).
	HTTPClient *http.Client

	// Logger overrides the client logger (optional).
	Logger prolink.Logger

	// JWTSecret enables local HS256 verification of access tokens
	// (optional). When empty, tokens are verified against the project
	// JWKS endpoint.
	JWTSecret string

	// JWKSURL overrides the default JWKS endpoint (optional).
	// Default: "{BaseURL}/auth/v1/.well-known/jwks.json".
	JWKSURL string

	// HeartbeatInterval is the realtime socket keepalive period.
	// Default: 30 seconds.
	HeartbeatInterval time.Duration
}

func (c Config) validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("supabase: base URL is required")
	}
	if strings.TrimSpace(c.AnonKey) == "" {
		return fmt.Errorf("supabase: anon key is required")
	}
	return nil
}

func (c Config) baseURL() string {
	return strings.TrimSuffix(strings.TrimSpace(c.BaseURL), "/")
}

func (c Config) jwksURL() string {
	if c.JWKSURL != "" {
		return c.JWKSURL
	}
	return c.baseURL() + "/auth/v1/.well-known/jwks.json"
}

func (c Config) heartbeat() time.Duration {
	if c.HeartbeatInterval > 0 {
		return c.HeartbeatInterval
	}
	return 30 * time.Second
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 15 * time.Second}
}

package supabase

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/prolink/prolink-go"
)

// AccessClaims is the identity carried by a verified access token.
type AccessClaims struct {
	UserID string
	Email  string
	Role   prolink.Role
	Expiry time.Time
}

// TokenValidator verifies access tokens issued by the auth service,
// either against the project JWKS or with the shared HS256 secret.
type TokenValidator struct {
	config Config
	jwks   *keyfunc.JWKS
}

// NewTokenValidator creates a validator for the project in cfg. When
// no JWT secret is configured the project JWKS is fetched and kept
// refreshed in the background.
func NewTokenValidator(ctx context.Context, cfg Config) (*TokenValidator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	v := &TokenValidator{config: cfg}

	if cfg.JWTSecret == "" {
		jwks, err := keyfunc.Get(cfg.jwksURL(), keyfunc.Options{
			Ctx:             ctx,
			RefreshInterval: time.Hour,
			RefreshErrorHandler: func(err error) {
				if cfg.Logger != nil {
					cfg.Logger.Warn("jwks refresh failed: %v", err)
				}
			},
		})
		if err != nil {
			return nil, fmt.Errorf("supabase: failed to fetch JWKS: %w", err)
		}
		v.jwks = jwks
	}

	return v, nil
}

// Validate parses and verifies tokenString, returning its identity
// claims.
func (v *TokenValidator) Validate(tokenString string) (*AccessClaims, error) {
	var (
		token *jwt.Token
		err   error
	)

	claims := jwt.MapClaims{}
	if v.jwks != nil {
		token, err = jwt.ParseWithClaims(tokenString, claims, v.jwks.Keyfunc)
	} else {
		token, err = jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(v.config.JWTSecret), nil
		})
	}

	if err != nil {
		return nil, normalizeValidationError(err)
	}
	if token == nil || !token.Valid {
		return nil, prolink.ErrNotAuthenticated
	}

	return claimsFromMap(claims), nil
}

// Close stops the background JWKS refresh.
func (v *TokenValidator) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

func claimsFromMap(claims jwt.MapClaims) *AccessClaims {
	out := &AccessClaims{}

	if sub, err := claims.GetSubject(); err == nil {
		out.UserID = sub
	}
	if email, ok := claims["email"].(string); ok {
		out.Email = email
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.Expiry = exp.Time
	}

	// The profile role is mirrored into app_metadata by the backend;
	// user_metadata carries the sign-up seed before the mirror runs.
	if role := metadataRole(claims, "app_metadata"); role != "" {
		out.Role = role
	} else {
		out.Role = metadataRole(claims, "user_metadata")
	}

	return out
}

func metadataRole(claims jwt.MapClaims, key string) prolink.Role {
	meta, ok := claims[key].(map[string]any)
	if !ok {
		return ""
	}
	raw, ok := meta["role"].(string)
	if !ok {
		return ""
	}
	role, ok := prolink.ParseRole(raw)
	if !ok {
		return ""
	}
	return role
}

func normalizeValidationError(err error) error {
	if err == nil {
		return nil
	}

	if stderrors.Is(err, jwt.ErrTokenExpired) {
		return goerrors.Wrap(prolink.ErrNotAuthenticated, goerrors.CategoryAuth, "access token expired").
			WithMetadata(map[string]any{"cause": err.Error()})
	}

	return goerrors.Wrap(prolink.ErrNotAuthenticated, goerrors.CategoryAuth, "access token rejected").
		WithMetadata(map[string]any{"cause": err.Error()})
}

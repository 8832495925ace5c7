// Package auth verifies Supabase access tokens and validates issuer/audience.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"example/meal-planner-api/app/config"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

const (
	defaultLeeway   = 30 * time.Second
	defaultAudience = "authenticated"
)

// TokenVerifier turns a bearer token into verified claims.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// Verifier validates Supabase JWT access tokens locally, either against the
// project's JWKS or against the legacy shared HS256 secret.
type Verifier struct {
	issuer   string
	audience string
	keyfunc  jwt.Keyfunc
	parser   *jwt.Parser
}

// NewVerifierFromConfig picks the verifier implementation named by AUTH_MODE.
func NewVerifierFromConfig(cfg config.AuthConfig) (TokenVerifier, error) {
	if cfg.SupabaseURL == "" {
		return nil, errors.New("SUPABASE_URL must be set")
	}
	switch cfg.Mode {
	case "remote":
		return NewRemoteVerifier(cfg.SupabaseURL, cfg.AnonKey, nil)
	case "", "jwt":
		issuer := IssuerForProject(cfg.SupabaseURL)
		if cfg.JWTSecret != "" {
			return NewSecretVerifier(issuer, cfg.Audience, []byte(cfg.JWTSecret))
		}
		return NewVerifier(issuer, cfg.Audience, "")
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}

// IssuerForProject returns the token issuer for a Supabase project URL.
func IssuerForProject(projectURL string) string {
	return strings.TrimRight(strings.TrimSpace(projectURL), "/") + "/auth/v1"
}

// NewVerifier builds a JWKS-backed verifier with an optional JWKS URL override.
func NewVerifier(issuer, audience, jwksURL string) (*Verifier, error) {
	normalizedIssuer := normalizeIssuer(issuer)
	if normalizedIssuer == "" {
		return nil, errors.New("issuer must be set")
	}
	if audience == "" {
		audience = defaultAudience
	}
	if jwksURL == "" {
		jwksURL = normalizedIssuer + "/.well-known/jwks.json"
	}

	keyProvider, err := keyfunc.NewDefault([]string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to init JWKS keyfunc: %w", err)
	}

	parser := jwt.NewParser(
		jwt.WithIssuer(normalizedIssuer),
		jwt.WithAudience(audience),
		jwt.WithLeeway(defaultLeeway),
		jwt.WithValidMethods([]string{
			jwt.SigningMethodRS256.Name,
			jwt.SigningMethodRS384.Name,
			jwt.SigningMethodRS512.Name,
			jwt.SigningMethodES256.Name,
		}),
	)

	return &Verifier{
		issuer:   normalizedIssuer,
		audience: audience,
		keyfunc:  keyProvider.Keyfunc,
		parser:   parser,
	}, nil
}

// NewSecretVerifier builds a verifier for projects still signing with the shared JWT secret.
func NewSecretVerifier(issuer, audience string, secret []byte) (*Verifier, error) {
	normalizedIssuer := normalizeIssuer(issuer)
	if normalizedIssuer == "" {
		return nil, errors.New("issuer must be set")
	}
	if len(secret) == 0 {
		return nil, errors.New("jwt secret must be set")
	}
	if audience == "" {
		audience = defaultAudience
	}

	parser := jwt.NewParser(
		jwt.WithIssuer(normalizedIssuer),
		jwt.WithAudience(audience),
		jwt.WithLeeway(defaultLeeway),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
	)

	return &Verifier{
		issuer:   normalizedIssuer,
		audience: audience,
		keyfunc: func(*jwt.Token) (any, error) {
			return secret, nil
		},
		parser: parser,
	}, nil
}

// Verify parses and validates a JWT, returning extracted claims.
func (v *Verifier) Verify(_ context.Context, tokenString string) (*Claims, error) {
	token, err := v.parser.Parse(tokenString, v.keyfunc)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	claims := &Claims{
		Subject:   readString(mapClaims, "sub"),
		Email:     readString(mapClaims, "email"),
		Role:      readString(mapClaims, "role"),
		Issuer:    readString(mapClaims, "iss"),
		Audience:  readAudience(mapClaims["aud"]),
		ExpiresAt: readExpiry(mapClaims["exp"]),
		Raw:       mapClaims,
	}
	if claims.Subject == "" {
		return nil, errors.New("token missing sub")
	}
	return claims, nil
}

func normalizeIssuer(issuer string) string {
	return strings.TrimRight(strings.TrimSpace(issuer), "/")
}

func readString(claims jwt.MapClaims, key string) string {
	if s, ok := claims[key].(string); ok {
		return s
	}
	return ""
}

func readAudience(raw any) []string {
	switch v := raw.(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return v
	default:
		return nil
	}
}

func readExpiry(raw any) time.Time {
	switch v := raw.(type) {
	case float64:
		return time.Unix(int64(v), 0)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return time.Unix(i, 0)
		}
	case int64:
		return time.Unix(v, 0)
	}
	return time.Time{}
}

// AuthDisabled reports whether auth should be skipped for local development.
func AuthDisabled() bool {
	if strings.EqualFold(os.Getenv("AUTH_DISABLED"), "true") {
		if strings.EqualFold(os.Getenv("ENV"), "local") || os.Getenv("AWS_LAMBDA_FUNCTION_NAME") == "" {
			logrus.WithField("module", "auth").Debug("auth disabled via AUTH_DISABLED for local development")
			return true
		}
	}
	return false
}

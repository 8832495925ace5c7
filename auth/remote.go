package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrTokenRejected is returned when the auth service refuses the token.
var ErrTokenRejected = errors.New("token rejected by auth service")

// RemoteVerifier asks the hosted auth service who a token belongs to.
// It is slower than local verification but honours server-side revocation.
type RemoteVerifier struct {
	userURL string
	apiKey  string
	httpc   *http.Client
}

type remoteUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Aud   string `json:"aud"`
}

// NewRemoteVerifier builds a verifier for <projectURL>/auth/v1/user.
func NewRemoteVerifier(projectURL, apiKey string, httpc *http.Client) (*RemoteVerifier, error) {
	projectURL = strings.TrimRight(strings.TrimSpace(projectURL), "/")
	if projectURL == "" {
		return nil, errors.New("project url must be set")
	}
	if apiKey == "" {
		return nil, errors.New("api key must be set")
	}
	if httpc == nil {
		httpc = &http.Client{Timeout: 10 * time.Second}
	}
	return &RemoteVerifier{
		userURL: IssuerForProject(projectURL) + "/user",
		apiKey:  apiKey,
		httpc:   httpc,
	}, nil
}

// Verify calls the auth service with the bearer token and maps the returned user.
func (v *RemoteVerifier) Verify(ctx context.Context, token string) (*Claims, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.userURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", v.apiKey)
	req.Header.Set("Accept", "application/json")

	res, err := v.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth service request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil, fmt.Errorf("%w: status %d", ErrTokenRejected, res.StatusCode)
	}

	var user remoteUser
	if err := json.NewDecoder(res.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode auth user: %w", err)
	}
	if user.ID == "" {
		return nil, errors.New("auth service returned user without id")
	}

	claims := &Claims{
		Subject: user.ID,
		Email:   user.Email,
		Role:    user.Role,
		Raw: map[string]any{
			"sub":   user.ID,
			"email": user.Email,
			"role":  user.Role,
			"aud":   user.Aud,
		},
	}
	if user.Aud != "" {
		claims.Audience = []string{user.Aud}
	}
	return claims, nil
}

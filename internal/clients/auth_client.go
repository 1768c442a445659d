package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrUnauthorized marks a missing or invalid identity. A connection is not
// registered and a request is not served past this error.
var ErrUnauthorized = errors.New("unauthorized")

// TokenValidator verifies a bearer token and yields the authenticated user id.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (int, error)
}

// AuthClient wraps the auth-service internal HTTP API.
type AuthClient struct {
	baseURL string
	http    *http.Client
}

// NewAuthClient constructs the wrapper.
func NewAuthClient(baseURL string) *AuthClient {
	return &AuthClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// ValidateToken verifies the token and returns the authenticated user id.
func (a *AuthClient) ValidateToken(ctx context.Context, token string) (int, error) {
	if token == "" {
		return 0, ErrUnauthorized
	}

	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/internal/tokens/validate", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("auth service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return 0, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("auth service: unexpected status %d", resp.StatusCode)
	}

	var out struct {
		Valid  bool `json:"valid"`
		UserID int  `json:"user_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("auth service: decode: %w", err)
	}
	if !out.Valid || out.UserID == 0 {
		return 0, ErrUnauthorized
	}
	return out.UserID, nil
}

var _ TokenValidator = (*AuthClient)(nil)

package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// User is the directory view of a user. The chat core stores only ids; the
// display fields exist purely for response enrichment.
type User struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
}

// UserDirectory resolves user ids to display info.
type UserDirectory interface {
	GetUser(ctx context.Context, userID int) (User, error)
	BulkUsers(ctx context.Context, ids []int) ([]User, error)
}

// UserClient wraps the user-service internal HTTP API.
type UserClient struct {
	baseURL string
	http    *http.Client
}

// NewUserClient constructs the wrapper.
func NewUserClient(baseURL string) *UserClient {
	return &UserClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// GetUser retrieves one user's details.
func (u *UserClient) GetUser(ctx context.Context, userID int) (User, error) {
	users, err := u.BulkUsers(ctx, []int{userID})
	if err != nil {
		return User{}, err
	}
	if len(users) == 0 {
		return User{}, errors.New("user not found")
	}
	return users[0], nil
}

// BulkUsers fetches multiple users in one call.
func (u *UserClient) BulkUsers(ctx context.Context, ids []int) ([]User, error) {
	if len(ids) == 0 {
		return []User{}, nil
	}

	params := make([]string, 0, len(ids))
	for _, id := range ids {
		params = append(params, strconv.Itoa(id))
	}
	url := u.baseURL + "/internal/users?ids=" + strings.Join(params, ",")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := u.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user service: unexpected status %d", resp.StatusCode)
	}

	var out struct {
		Users []User `json:"users"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("user service: decode: %w", err)
	}
	return out.Users, nil
}

var _ UserDirectory = (*UserClient)(nil)

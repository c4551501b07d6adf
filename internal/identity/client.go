package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// Client talks to the identity provider's management API. It is used to
// backfill a user profile when a valid session arrives for an identity the
// webhook or sync endpoint has not mirrored yet.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a Client for the given API base URL and key. The key is a
// static bearer token; oauth2.NewClient wraps the default transport so every
// request carries it.
func NewClient(baseURL, apiKey string) *Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: apiKey,
		TokenType:   "Bearer",
	})
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    oauth2.NewClient(context.Background(), src),
	}
}

// FetchUser retrieves a user profile from the provider.
func (c *Client) FetchUser(ctx context.Context, id string) (*EventUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/users/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("identity: building user request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity: fetching user %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity: provider returned status %d for user %s", resp.StatusCode, id)
	}

	var u EventUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("identity: decoding user %s: %w", id, err)
	}
	if u.ID == "" {
		return nil, fmt.Errorf("identity: provider returned an empty user for %s", id)
	}
	return &u, nil
}

package linksdk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// Session carries a session token for one signed-in person. Session tokens
// are short-lived and cannot be refreshed; open a new session with a fresh
// ID token once Expired reports true.
type Session struct {
	client *Client

	mu          sync.RWMutex
	accessToken string
	expiresAt   time.Time
}

// NewSession exchanges an ID token from the external identity provider for
// a session.
func (c *Client) NewSession(ctx context.Context, idToken string) (*Session, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/session", SessionRequest{IDToken: idToken}, nil)
	if err != nil {
		return nil, err
	}

	var out SessionResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return c.NewSessionFromToken(out.AccessToken, out.ExpiresIn), nil
}

// NewSessionFromToken wraps an existing session token.
func (c *Client) NewSessionFromToken(accessToken string, expiresIn int64) *Session {
	return &Session{
		client:      c,
		accessToken: accessToken,
		expiresAt:   time.Now().Add(time.Duration(expiresIn) * time.Second),
	}
}

// AccessToken returns the session token.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// Expired reports whether the session token has run out.
func (s *Session) Expired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !time.Now().Before(s.expiresAt)
}

// CompleteLink links the signed-in identity to the username a tenant issued
// token for. username may be empty.
func (s *Session) CompleteLink(ctx context.Context, tenantID, token, username string) (string, error) {
	path := "/v1/link/" + url.PathEscape(tenantID) + "/" + url.PathEscape(token)
	resp, err := s.doAuthRequest(ctx, http.MethodPost, path, LinkRequest{Username: username})
	if err != nil {
		return "", err
	}

	var out LinkResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return "", err
	}
	return out.Outcome, nil
}

// RedeemInvite accepts an invite for the signed-in identity and returns the
// role granted.
func (s *Session) RedeemInvite(ctx context.Context, token string) (string, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/invites/"+url.PathEscape(token)+"/redeem", nil)
	if err != nil {
		return "", err
	}

	var out RedeemInviteResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return "", err
	}
	return out.Role, nil
}

// Bootstrap makes the signed-in identity the first administrator.
func (s *Session) Bootstrap(ctx context.Context, bootstrapToken string) error {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/bootstrap", BootstrapRequest{Token: bootstrapToken})
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// doAuthRequest performs a request carrying the session bearer token.
func (s *Session) doAuthRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	if s.Expired() {
		return nil, fmt.Errorf("session expired")
	}
	return s.client.doRequest(ctx, method, path, body, map[string]string{
		"Authorization": "Bearer " + s.AccessToken(),
	})
}

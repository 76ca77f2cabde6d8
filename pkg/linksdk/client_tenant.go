package linksdk

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"
)

// DefaultPollInterval is how often WaitForLink asks for status.
const DefaultPollInterval = 5 * time.Second

// IssueToken registers token for username. The service answers the same way
// whether or not the token was stored; only transport failures and an
// unavailable service are reported as errors.
func (c *Client) IssueToken(ctx context.Context, token, username string) error {
	resp, err := c.doTenantRequest(ctx, http.MethodPost, "/v1/tokens", IssueTokenRequest{
		TenantID: c.TenantID,
		Token:    token,
		Username: username,
	})
	if err != nil {
		return err
	}

	var ack AckResponse
	return decodeJSON(resp, &ack, http.StatusAccepted)
}

// CheckStatus reports whether the player finished linking token. A true
// answer consumes the token, so it is returned at most once.
func (c *Client) CheckStatus(ctx context.Context, token string) (bool, error) {
	path := "/v1/tokens/" + url.PathEscape(c.TenantID) + "/" + url.PathEscape(token) + "/status"
	resp, err := c.doTenantRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return false, err
	}

	var status StatusResponse
	if err := decodeJSON(resp, &status, http.StatusOK); err != nil {
		return false, err
	}
	return status.LoggedIn, nil
}

// IsUser reports whether username is bound on this tenant.
func (c *Client) IsUser(ctx context.Context, username string) (bool, error) {
	path := "/v1/servers/" + url.PathEscape(c.TenantID) + "/users/" + url.PathEscape(username)
	resp, err := c.doTenantRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return false, err
	}

	var out IsUserResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return false, err
	}
	return out.Exists, nil
}

// LinkURL is the page the player opens to link token. The page itself is
// served by the web front end deployed at BaseURL, which signs the player in
// and calls CompleteLink.
func (c *Client) LinkURL(token, username string) string {
	u := c.url("/link/" + url.PathEscape(c.TenantID) + "/" + url.PathEscape(token))
	if username == "" {
		return u
	}
	return u + "?" + url.Values{"username": {username}}.Encode()
}

// WaitForLink polls CheckStatus every interval until the token is linked or
// ctx is done. Transport failures, rate limiting and an unavailable service
// are retried on the next tick; any other error response ends the wait.
func (c *Client) WaitForLink(ctx context.Context, token string, interval time.Duration) (bool, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}

		ok, err := c.CheckStatus(ctx, token)
		if err != nil && !retryable(err) {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
}

func retryable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return true
	}
	return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError
}

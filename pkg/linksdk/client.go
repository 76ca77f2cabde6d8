package linksdk

import (
	"net/http"
	"strings"
	"time"

	"github.com/bonkmc/modernauth/pkg/cryptox"
)

// tokenBytes gives 43-character tokens, comfortably above the service's
// minimum length.
const tokenBytes = 32

// Client talks to the linking service as one tenant.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	// TenantID and Secret authenticate tenant calls. They may be left empty
	// when the client is only used to open sessions or probe health.
	TenantID string
	Secret   string
}

// NewClient creates a client for tenantID.
func NewClient(baseURL, tenantID, secret string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		TenantID: tenantID,
		Secret:   secret,
	}
}

// NewLinkToken returns a fresh random link token.
func NewLinkToken() (string, error) {
	return cryptox.GenerateToken(tokenBytes)
}

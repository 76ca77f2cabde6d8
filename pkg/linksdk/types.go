package linksdk

import "github.com/bonkmc/modernauth/pkg/jwtx"

// ============================================================================
// Tenant Types
// ============================================================================

// IssueTokenRequest registers a pending link token for a player.
type IssueTokenRequest struct {
	TenantID string `json:"tenant_id"`
	Token    string `json:"token"`
	Username string `json:"username"`
}

// AckResponse is the uniform answer to IssueToken. It never says whether the
// token was stored.
type AckResponse struct {
	Message string `json:"message"`
}

// StatusResponse reports whether a player completed the link.
type StatusResponse struct {
	LoggedIn bool `json:"logged_in"`
}

// IsUserResponse reports whether a username is bound on a tenant.
type IsUserResponse struct {
	Exists bool `json:"exists"`
}

// ============================================================================
// Session Types
// ============================================================================

// SessionRequest exchanges a provider ID token for a session token.
type SessionRequest struct {
	IDToken string `json:"id_token"`
}

// SessionResponse carries the session bearer token.
type SessionResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// LinkRequest completes a link. Username is optional and must match the
// username the tenant issued the token for.
type LinkRequest struct {
	Username string `json:"username,omitempty"`
}

// Link outcomes.
const (
	OutcomeCreated  = "created"
	OutcomeLoggedIn = "logged_in"
)

// LinkResponse reports whether the link created a new binding or logged
// into an existing one.
type LinkResponse struct {
	Outcome string `json:"outcome"`
}

// RedeemInviteResponse names the role the invite granted.
type RedeemInviteResponse struct {
	Role string `json:"role"`
}

// BootstrapRequest carries the operator-configured bootstrap token.
type BootstrapRequest struct {
	Token string `json:"token"`
}

// ============================================================================
// Admin Types
// ============================================================================

// Invite roles.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
)

// ServerCreateRequest registers a new tenant.
type ServerCreateRequest struct {
	ID string `json:"id"`
}

// ServerSecretResponse returns a freshly generated tenant secret. The secret
// is shown once and never stored in plaintext.
type ServerSecretResponse struct {
	ID     string `json:"id"`
	Secret string `json:"secret"`
}

// Server describes a registered tenant.
type Server struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// ServerListResponse lists the tenants visible to the caller.
type ServerListResponse struct {
	Servers []Server `json:"servers"`
}

// AddAccessRequest invites email as a manager of one tenant.
type AddAccessRequest struct {
	Email string `json:"email"`
}

// InviteRequest mints an invite. Servers is required for manager invites
// and ignored for admin invites.
type InviteRequest struct {
	Role    string   `json:"role"`
	Email   string   `json:"email"`
	Servers []string `json:"servers,omitempty"`
}

// InviteResponse returns the minted invite. Delivered is false when the
// invite email could not be sent; the link must then be passed on by hand.
type InviteResponse struct {
	Token     string `json:"token"`
	Link      string `json:"link"`
	Role      string `json:"role"`
	ExpiresAt int64  `json:"expires_at"`
	Delivered bool   `json:"delivered"`
}

// RevokeAccessRequest removes grants recorded for email.
type RevokeAccessRequest struct {
	Email     string `json:"email"`
	AdminOnly bool   `json:"admin_only,omitempty"`
}

// RevokeAccessResponse counts the grants removed.
type RevokeAccessResponse struct {
	Removed int `json:"removed"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks is the per-dependency status on /readyz.
type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`
}

// JWKSResponse holds the public keys that verify session tokens.
type JWKSResponse jwtx.JWKS

package domain

import (
	"errors"
	"regexp"
	"time"
)

// InviteTenantID is the reserved tenant under which invite tokens are
// issued. No real tenant may use it.
const InviteTenantID = "invite"

var tenantIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

var ErrInvalidTenantID = errors.New("domain: tenant id must be 1-64 characters of [A-Za-z0-9._-] and not reserved")

// Tenant is a downstream application (a game server, typically) that
// delegates identity verification to this service.
type Tenant struct {
	ID         string
	SecretHash string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ValidateTenantID checks the shape of an administrator-chosen tenant ID.
func ValidateTenantID(id string) error {
	if id == InviteTenantID || !tenantIDPattern.MatchString(id) {
		return ErrInvalidTenantID
	}
	return nil
}

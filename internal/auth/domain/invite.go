package domain

import "fmt"

// InviteRole is the grant an invite provisions.
type InviteRole string

const (
	RoleAdmin   InviteRole = "admin"
	RoleManager InviteRole = "manager"
)

// ParseInviteRole parses "admin" or "manager".
func ParseInviteRole(s string) (InviteRole, error) {
	switch r := InviteRole(s); r {
	case RoleAdmin, RoleManager:
		return r, nil
	default:
		return "", fmt.Errorf("domain: unknown invite role %q", s)
	}
}

package domain

import (
	"errors"
	"strings"
	"time"
	"unicode"
)

const maxUsernameLength = 64

var ErrInvalidUsername = errors.New("domain: username must be 1-64 printable non-space characters")

// Identity binds a tenant-scoped username to a verified external subject.
// It is never updated in place: re-binding means unbind then bind.
type Identity struct {
	TenantID     string
	Username     string
	IdentityHash string
	EmailHash    string // empty when the provider gave no verified email
	CreatedAt    time.Time
}

// Proof is what the external identity provider vouched for.
type Proof struct {
	Subject string
	Email   string
}

// ValidateUsername checks a tenant-supplied username. Usernames are opaque
// to this service, so only control characters and whitespace are refused.
func ValidateUsername(u string) error {
	if u == "" || len(u) > maxUsernameLength {
		return ErrInvalidUsername
	}
	for _, r := range u {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return ErrInvalidUsername
		}
	}
	return nil
}

// ExternalIdentity is the verified assertion from the external identity
// provider.
type ExternalIdentity struct {
	Subject       string
	Name          string
	Email         string
	EmailVerified bool
}

// Proof returns the binding proof. Unverified emails are dropped.
func (e ExternalIdentity) Proof() Proof {
	p := Proof{Subject: e.Subject}
	if e.EmailVerified {
		p.Email = NormalizeEmail(e.Email)
	}
	return p
}

// NormalizeEmail lowercases and trims an address before it is hashed or
// compared.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

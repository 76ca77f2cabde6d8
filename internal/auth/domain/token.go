package domain

import (
	"errors"
	"fmt"
	"time"
)

// Token lifetimes.
const (
	DefaultLinkTokenTTL = 600 * time.Second
	DefaultInviteTTL    = 3600 * time.Second
)

// MinRawTokenLength is the shortest raw token accepted from a tenant.
const MinRawTokenLength = 30

// PurposeKind discriminates what a LinkToken is for.
type PurposeKind string

const (
	PurposeLogin  PurposeKind = "login"
	PurposeInvite PurposeKind = "invite"
)

// Purpose is the closed set of things a LinkToken can be issued for:
// LoginPurpose or InvitePurpose.
type Purpose interface {
	Kind() PurposeKind
	isPurpose()
}

// LoginPurpose marks a token that links a tenant username to an identity.
type LoginPurpose struct{}

func (LoginPurpose) Kind() PurposeKind { return PurposeLogin }
func (LoginPurpose) isPurpose()        {}

// InvitePurpose marks a token that provisions an AccessGrant when redeemed.
// The invitee's email is held only as a salted hash.
type InvitePurpose struct {
	Role      InviteRole `cbor:"1,keyasint"`
	EmailHash string     `cbor:"2,keyasint"`
	Servers   []string   `cbor:"3,keyasint,omitempty"`
}

func (InvitePurpose) Kind() PurposeKind { return PurposeInvite }
func (InvitePurpose) isPurpose()        {}

// Validate checks the invite is internally consistent.
func (p InvitePurpose) Validate() error {
	switch p.Role {
	case RoleAdmin:
	case RoleManager:
		if len(p.Servers) == 0 {
			return errors.New("domain: manager invite needs at least one server")
		}
	default:
		return fmt.Errorf("domain: unknown invite role %q", p.Role)
	}
	if p.EmailHash == "" {
		return errors.New("domain: invite email hash is empty")
	}
	return nil
}

// LinkToken is the stored form of a linking token. Only the keyed digest of
// the raw token is kept.
//
// State machine: pending (Authorized=false) -> authorized -> consumed
// (deleted). Either live state expires once ExpiresAt passes.
type LinkToken struct {
	TokenHash  string
	TenantID   string
	Username   string
	ExpiresAt  time.Time
	Authorized bool
	Purpose    Purpose
	CreatedAt  time.Time
}

// IsLive reports whether the token has not yet expired at now.
func (t LinkToken) IsLive(now time.Time) bool {
	return now.Before(t.ExpiresAt)
}

// Invite returns the invite metadata when the token is an invite.
func (t LinkToken) Invite() (InvitePurpose, bool) {
	p, ok := t.Purpose.(InvitePurpose)
	return p, ok
}

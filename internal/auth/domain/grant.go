package domain

import (
	"slices"
	"sort"
	"time"
)

// AccessGrant gives a subject administrative authority. Admins reach every
// tenant; managers are non-admin grants with a non-empty TenantIDs.
type AccessGrant struct {
	SubjectHash string
	IsAdmin     bool
	TenantIDs   []string
	EmailHash   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsManager reports whether the grant is a tenant-scoped manager.
func (g AccessGrant) IsManager() bool {
	return !g.IsAdmin && len(g.TenantIDs) > 0
}

// HasTenant reports whether tenantID is in the stored set. It ignores
// IsAdmin; use Accessible for authorization.
func (g AccessGrant) HasTenant(tenantID string) bool {
	return slices.Contains(g.TenantIDs, tenantID)
}

// Accessible returns the tenants this grant may administer.
func (g AccessGrant) Accessible() TenantSet {
	if g.IsAdmin {
		return AllTenants()
	}
	return NewTenantSet(g.TenantIDs...)
}

// TenantSet is either every tenant or an explicit set.
type TenantSet struct {
	all bool
	ids map[string]struct{}
}

// AllTenants is the set an admin can reach.
func AllTenants() TenantSet { return TenantSet{all: true} }

// NewTenantSet builds an explicit set, dropping duplicates and blanks.
func NewTenantSet(ids ...string) TenantSet {
	s := TenantSet{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		if id != "" {
			s.ids[id] = struct{}{}
		}
	}
	return s
}

// All reports whether the set is unrestricted.
func (s TenantSet) All() bool { return s.all }

// Contains reports whether tenantID is in the set.
func (s TenantSet) Contains(tenantID string) bool {
	if s.all {
		return true
	}
	_, ok := s.ids[tenantID]
	return ok
}

// IsEmpty reports whether the set grants nothing.
func (s TenantSet) IsEmpty() bool { return !s.all && len(s.ids) == 0 }

// IDs returns the explicit members sorted. It is nil for All.
func (s TenantSet) IDs() []string {
	if s.all || len(s.ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Filter keeps the tenants the set contains, preserving order.
func (s TenantSet) Filter(tenants []Tenant) []Tenant {
	if s.all {
		return tenants
	}
	out := make([]Tenant, 0, len(tenants))
	for _, t := range tenants {
		if s.Contains(t.ID) {
			out = append(out, t)
		}
	}
	return out
}

// Package access implements role checks backed by static configuration.
package access

import "github.com/0xBased-lang/kektech-backend/internal/domain"

// Checker implements domain.AccessChecker from configured role membership
// lists. Membership is fixed at startup; changing roles requires a restart.
type Checker struct {
	roles map[string]map[string]bool // role -> account set
}

// New builds a Checker from per-role account lists.
func New(admins, resolvers, backends []string) *Checker {
	c := &Checker{roles: map[string]map[string]bool{
		domain.RoleAdmin:    toSet(admins),
		domain.RoleResolver: toSet(resolvers),
		domain.RoleBackend:  toSet(backends),
	}}
	// Admins implicitly hold the resolver and backend roles.
	for _, a := range admins {
		c.roles[domain.RoleResolver][a] = true
		c.roles[domain.RoleBackend][a] = true
	}
	return c
}

// HasRole reports whether account is a member of role.
func (c *Checker) HasRole(role, account string) bool {
	return c.roles[role][account]
}

func toSet(accounts []string) map[string]bool {
	set := make(map[string]bool, len(accounts))
	for _, a := range accounts {
		if a != "" {
			set[a] = true
		}
	}
	return set
}

// Compile-time interface check.
var _ domain.AccessChecker = (*Checker)(nil)

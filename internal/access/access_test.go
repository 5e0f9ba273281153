package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/0xBased-lang/kektech-backend/internal/domain"
)

func TestChecker_Roles(t *testing.T) {
	c := New([]string{"admin-1"}, []string{"resolver-1"}, []string{"backend-1"})

	assert.True(t, c.HasRole(domain.RoleAdmin, "admin-1"))
	assert.True(t, c.HasRole(domain.RoleResolver, "resolver-1"))
	assert.True(t, c.HasRole(domain.RoleBackend, "backend-1"))

	assert.False(t, c.HasRole(domain.RoleAdmin, "resolver-1"))
	assert.False(t, c.HasRole(domain.RoleResolver, "backend-1"))
	assert.False(t, c.HasRole(domain.RoleAdmin, ""))
}

func TestChecker_AdminsInheritLowerRoles(t *testing.T) {
	c := New([]string{"admin-1"}, nil, nil)

	assert.True(t, c.HasRole(domain.RoleResolver, "admin-1"))
	assert.True(t, c.HasRole(domain.RoleBackend, "admin-1"))
}

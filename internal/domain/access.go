package domain

// Role names understood by the access checker.
const (
	RoleAdmin    = "admin"
	RoleResolver = "resolver"
	RoleBackend  = "backend"
)

// AccessChecker gates role-restricted operations. Implementations must be
// synchronous and side-effect-free; the checker is injected once at
// construction, never looked up per call.
type AccessChecker interface {
	HasRole(role, account string) bool
}

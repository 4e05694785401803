package domain

// Role is the caller's role within an organization, established by the
// upstream auth layer. The access-level mapping below is the single policy
// point for tenant confidentiality tiers; the knowledge store itself only
// ever sees explicit level sets.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleAgent   Role = "agent"
	RoleViewer  Role = "viewer"
)

// IsValidRole checks if a Role is valid
func IsValidRole(r Role) bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleManager, RoleAgent, RoleViewer:
		return true
	}
	return false
}

// AllowedAccessLevels returns the confidentiality tiers a role may read.
// The restricted tier is reserved for owner and admin.
func AllowedAccessLevels(r Role) []AccessLevel {
	switch r {
	case RoleOwner, RoleAdmin:
		return []AccessLevel{AccessLevelPublic, AccessLevelConfidential, AccessLevelRestricted}
	case RoleManager:
		return []AccessLevel{AccessLevelPublic, AccessLevelConfidential}
	case RoleAgent, RoleViewer:
		return []AccessLevel{AccessLevelPublic}
	default:
		return []AccessLevel{AccessLevelPublic}
	}
}

// CanWriteAccessLevel reports whether a role may ingest at the given level.
// A role may only write at levels it can read.
func CanWriteAccessLevel(r Role, level AccessLevel) bool {
	if r == RoleViewer || r == RoleAgent {
		// Read-only roles never ingest.
		return false
	}
	for _, allowed := range AllowedAccessLevels(r) {
		if allowed == level {
			return true
		}
	}
	return false
}

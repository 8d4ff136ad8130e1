package prolink

// Role is the marketplace account type. It is a closed two-variant
// set: a profile is either a client (posts jobs) or a professional
// (works them). The role is written once by the backend's profiles
// trigger and treated as immutable afterwards; the route guard relies
// on that.
type Role string

const (
	// RoleClient posts jobs and hires professionals.
	RoleClient Role = "client"
	// RoleProfessional finds jobs and submits proposals.
	RoleProfessional Role = "professional"
)

// Navigation targets owned by the application shell.
const (
	PathHome                  = "/"
	PathLogin                 = "/login"
	PathClientDashboard       = "/client-dashboard"
	PathProfessionalDashboard = "/professional-dashboard"
)

// IsValid checks if the role is one of the two marketplace roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleClient, RoleProfessional:
		return true
	default:
		return false
	}
}

// DashboardPath returns the dashboard a holder of this role lands on.
// Unknown roles get the login path so the guard never routes a
// malformed profile into a role-specific subtree.
func (r Role) DashboardPath() string {
	switch r {
	case RoleClient:
		return PathClientDashboard
	case RoleProfessional:
		return PathProfessionalDashboard
	default:
		return PathLogin
	}
}

// ParseRole safely parses a string into a Role.
func ParseRole(raw string) (Role, bool) {
	role := Role(raw)
	return role, role.IsValid()
}

// AllRoles returns the closed role set.
func AllRoles() []Role {
	return []Role{RoleClient, RoleProfessional}
}

func roleSetContains(set []Role, role Role) bool {
	for _, r := range set {
		if r == role {
			return true
		}
	}
	return false
}

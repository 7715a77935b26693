package domain

import "strings"

// Role is the normalized (lowercase) role carried by a connection identity.
type Role string

const (
	RoleAtendente  Role = "atendente"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
	RoleCliente    Role = "cliente"
)

// staffRoles is the fixed set of roles that count as staff: they join the
// tenant attendants room and may run staff-only operations such as presence
// queries.
var staffRoles = map[Role]bool{
	RoleAtendente:  true,
	RoleSupervisor: true,
	RoleAdmin:      true,
}

// NormalizeRole lowercases and trims a raw role claim.
func NormalizeRole(raw string) Role {
	return Role(strings.ToLower(strings.TrimSpace(raw)))
}

// IsStaff reports whether the role belongs to the staff set. Matching is on
// the normalized form, so callers may pass claims verbatim through
// NormalizeRole first.
func (r Role) IsStaff() bool {
	return staffRoles[Role(strings.ToLower(string(r)))]
}

package domain

// Role is the closed set of actor roles in the back office.
type Role string

const (
	RoleAgent               Role = "agent"
	RoleRelationshipManager Role = "relationship_manager"
	RoleFranchise           Role = "franchise"
	RoleRegionalManager     Role = "regional_manager"
	RoleSuperAdmin          Role = "super_admin"
)

// Capabilities describes what a role may do with service requests.
type Capabilities struct {
	CreateTicket bool
	UpdateTicket bool
	Reassign     bool
	Resolve      bool
	SeesAll      bool
}

// Admins escalate and reassign but never close tickets.
var capabilityTable = map[Role]Capabilities{
	RoleAgent:               {CreateTicket: true, Resolve: true},
	RoleRelationshipManager: {UpdateTicket: true, Resolve: true},
	RoleFranchise:           {UpdateTicket: true, Resolve: true},
	RoleRegionalManager:     {UpdateTicket: true, Reassign: true, Resolve: true},
	RoleSuperAdmin:          {UpdateTicket: true, Reassign: true, SeesAll: true},
}

// ParseRole converts raw input into a Role.
func ParseRole(raw string) (Role, bool) {
	role := Role(raw)
	_, ok := capabilityTable[role]
	return role, ok
}

// Valid reports whether the role is known.
func (r Role) Valid() bool {
	_, ok := capabilityTable[r]
	return ok
}

// Capabilities returns the capability row for the role. Unknown roles get nothing.
func (r Role) Capabilities() Capabilities {
	return capabilityTable[r]
}

// IsSupervisor reports whether the role owns a supervisor entity directly.
func (r Role) IsSupervisor() bool {
	return r == RoleRelationshipManager || r == RoleFranchise
}

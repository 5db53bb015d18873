package domain

import "time"

// UserStatus represents lifecycle states for a back-office user.
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

// ManagedByModel discriminates which supervisor entity table ManagedBy points at.
type ManagedByModel string

const (
	ManagedByRelationshipManager ManagedByModel = "RelationshipManager"
	ManagedByFranchise           ManagedByModel = "Franchise"
)

// Valid reports whether the discriminator is known.
func (m ManagedByModel) Valid() bool {
	return m == ManagedByRelationshipManager || m == ManagedByFranchise
}

// SupervisorRole maps the owning entity kind to the role of its owner.
func (m ManagedByModel) SupervisorRole() Role {
	if m == ManagedByFranchise {
		return RoleFranchise
	}
	return RoleRelationshipManager
}

// ManagedByModelForRole returns the entity kind owned by a supervisor role.
func ManagedByModelForRole(role Role) (ManagedByModel, bool) {
	switch role {
	case RoleRelationshipManager:
		return ManagedByRelationshipManager, true
	case RoleFranchise:
		return ManagedByFranchise, true
	}
	return "", false
}

// User is an agent, supervisor or admin.
type User struct {
	ID             string
	Name           string
	Email          string
	PasswordHash   string
	Role           Role
	Status         UserStatus
	ManagedBy      *string
	ManagedByModel *ManagedByModel
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Active reports whether the user may act or receive assignments.
func (u *User) Active() bool {
	return u.Status == UserStatusActive
}

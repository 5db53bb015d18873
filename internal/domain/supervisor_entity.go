package domain

import "time"

// SupervisorEntity is a RelationshipManager or Franchise record that manages agents.
type SupervisorEntity struct {
	ID              string
	Model           ManagedByModel
	Name            string
	Owner           *string
	RegionalManager *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

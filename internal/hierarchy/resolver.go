// Package hierarchy answers who sits above an agent and which agents an actor may see.
//
// The ownership graph is two hops: an agent points at a RelationshipManager or
// Franchise record, and that record names its owner and its regional manager.
package hierarchy

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/service-request-desk/internal/domain"
	"github.com/spec-kit/service-request-desk/internal/repository"
)

// Assignment is the supervisor chain above an agent.
type Assignment struct {
	SupervisorID      string
	SupervisorRole    domain.Role
	RegionalManagerID string
}

// Scope is the set of agents whose tickets an actor may read. All means no filter.
type Scope struct {
	All      bool
	AgentIDs []string
}

// Resolver walks the agent -> entity -> owner/regional manager graph.
type Resolver struct {
	users    repository.UserRepository
	entities repository.SupervisorEntityRepository
}

// NewResolver constructs a resolver.
func NewResolver(users repository.UserRepository, entities repository.SupervisorEntityRepository) *Resolver {
	return &Resolver{users: users, entities: entities}
}

// supervisorEntity loads the entity managing agentID. A missing link at any hop
// reports found=false without an error.
func (r *Resolver) supervisorEntity(ctx context.Context, agentID string) (*domain.SupervisorEntity, bool, error) {
	agent, err := r.users.GetByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if agent.ManagedBy == nil || *agent.ManagedBy == "" || agent.ManagedByModel == nil || !agent.ManagedByModel.Valid() {
		return nil, false, nil
	}
	entity, err := r.entities.GetByID(ctx, *agent.ManagedByModel, *agent.ManagedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return entity, true, nil
}

// ResolveSupervisor returns the agent's direct supervisor and regional manager.
// found is false when the agent is unassigned, the entity is gone or it has no owner.
func (r *Resolver) ResolveSupervisor(ctx context.Context, agentID string) (Assignment, bool, error) {
	entity, found, err := r.supervisorEntity(ctx, agentID)
	if err != nil || !found {
		return Assignment{}, false, err
	}
	if entity.Owner == nil || *entity.Owner == "" {
		return Assignment{}, false, nil
	}
	assignment := Assignment{
		SupervisorID:   *entity.Owner,
		SupervisorRole: entity.Model.SupervisorRole(),
	}
	if entity.RegionalManager != nil {
		assignment.RegionalManagerID = *entity.RegionalManager
	}
	return assignment, true, nil
}

// ResolveRegionalManager returns the regional manager of the agent's supervisor entity.
// It does not require the entity to have an owner.
func (r *Resolver) ResolveRegionalManager(ctx context.Context, agentID string) (string, bool, error) {
	entity, found, err := r.supervisorEntity(ctx, agentID)
	if err != nil || !found {
		return "", false, err
	}
	if entity.RegionalManager == nil || *entity.RegionalManager == "" {
		return "", false, nil
	}
	return *entity.RegionalManager, true, nil
}

// AccessibleAgentIDs returns the agents whose tickets actor may see.
func (r *Resolver) AccessibleAgentIDs(ctx context.Context, actor *domain.User) (Scope, error) {
	if actor == nil {
		return Scope{AgentIDs: []string{}}, nil
	}
	switch actor.Role {
	case domain.RoleSuperAdmin:
		return Scope{All: true}, nil
	case domain.RoleAgent:
		return Scope{AgentIDs: []string{actor.ID}}, nil
	case domain.RoleRelationshipManager, domain.RoleFranchise:
		model, _ := domain.ManagedByModelForRole(actor.Role)
		entities, err := r.entities.ListByOwner(ctx, model, actor.ID)
		if err != nil {
			return Scope{}, err
		}
		return r.agentsUnder(ctx, entities)
	case domain.RoleRegionalManager:
		entities, err := r.entities.ListByRegionalManager(ctx, actor.ID)
		if err != nil {
			return Scope{}, err
		}
		return r.agentsUnder(ctx, entities)
	}
	return Scope{AgentIDs: []string{}}, nil
}

// agentsUnder collects agents managed by the entities, matching id and model exactly.
func (r *Resolver) agentsUnder(ctx context.Context, entities []domain.SupervisorEntity) (Scope, error) {
	byModel := map[domain.ManagedByModel][]string{}
	for _, entity := range entities {
		byModel[entity.Model] = append(byModel[entity.Model], entity.ID)
	}
	ids := []string{}
	seen := map[string]struct{}{}
	for _, model := range []domain.ManagedByModel{domain.ManagedByRelationshipManager, domain.ManagedByFranchise} {
		if len(byModel[model]) == 0 {
			continue
		}
		agents, err := r.users.ListAgentsManagedBy(ctx, model, byModel[model])
		if err != nil {
			return Scope{}, err
		}
		for _, agent := range agents {
			if _, dup := seen[agent.ID]; dup {
				continue
			}
			seen[agent.ID] = struct{}{}
			ids = append(ids, agent.ID)
		}
	}
	return Scope{AgentIDs: ids}, nil
}

// CanAccessTicket reports whether actor may read or act on ticket. The raising
// agent's hierarchy is resolved live, so tickets follow supervisor changes.
func (r *Resolver) CanAccessTicket(ctx context.Context, actor *domain.User, ticket *domain.Ticket) (bool, error) {
	if actor == nil || ticket == nil {
		return false, nil
	}
	if actor.Role.Capabilities().SeesAll {
		return true, nil
	}
	if ticket.AssignedTo != nil && *ticket.AssignedTo == actor.ID {
		return true, nil
	}
	if actor.Role == domain.RoleAgent {
		return ticket.RaisedBy == actor.ID, nil
	}
	entity, found, err := r.supervisorEntity(ctx, ticket.RaisedBy)
	if err != nil || !found {
		return false, err
	}
	if actor.Role.IsSupervisor() && entity.Owner != nil && *entity.Owner == actor.ID {
		return true, nil
	}
	if actor.Role == domain.RoleRegionalManager && entity.RegionalManager != nil && *entity.RegionalManager == actor.ID {
		return true, nil
	}
	return false, nil
}

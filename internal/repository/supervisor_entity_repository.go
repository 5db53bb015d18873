package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/service-request-desk/internal/domain"
)

// SupervisorEntityRepository reads RelationshipManager and Franchise records.
type SupervisorEntityRepository interface {
	GetByID(ctx context.Context, model domain.ManagedByModel, id string) (*domain.SupervisorEntity, error)
	ListByOwner(ctx context.Context, model domain.ManagedByModel, ownerID string) ([]domain.SupervisorEntity, error)
	ListByRegionalManager(ctx context.Context, regionalManagerID string) ([]domain.SupervisorEntity, error)
}

var entityTables = map[domain.ManagedByModel]string{
	domain.ManagedByRelationshipManager: "relationship_managers",
	domain.ManagedByFranchise:           "franchises",
}

type supervisorEntityRepository struct {
	pool *pgxpool.Pool
}

// NewSupervisorEntityRepository instantiates the repository.
func NewSupervisorEntityRepository(pool *pgxpool.Pool) SupervisorEntityRepository {
	return &supervisorEntityRepository{pool: pool}
}

func tableFor(model domain.ManagedByModel) (string, error) {
	table, ok := entityTables[model]
	if !ok {
		return "", fmt.Errorf("unknown supervisor entity model %q", model)
	}
	return table, nil
}

func (r *supervisorEntityRepository) GetByID(ctx context.Context, model domain.ManagedByModel, id string) (*domain.SupervisorEntity, error) {
	table, err := tableFor(model)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT id, name, owner_id, regional_manager_id, created_at, updated_at FROM %s WHERE id=$1`, table)
	entity, err := scanEntity(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	entity.Model = model
	return entity, nil
}

func (r *supervisorEntityRepository) ListByOwner(ctx context.Context, model domain.ManagedByModel, ownerID string) ([]domain.SupervisorEntity, error) {
	table, err := tableFor(model)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT id, name, owner_id, regional_manager_id, created_at, updated_at FROM %s WHERE owner_id=$1 ORDER BY id`, table)
	return r.list(ctx, model, query, ownerID)
}

// ListByRegionalManager returns entities of both kinds reporting to the regional manager.
func (r *supervisorEntityRepository) ListByRegionalManager(ctx context.Context, regionalManagerID string) ([]domain.SupervisorEntity, error) {
	var result []domain.SupervisorEntity
	for _, model := range []domain.ManagedByModel{domain.ManagedByRelationshipManager, domain.ManagedByFranchise} {
		query := fmt.Sprintf(`SELECT id, name, owner_id, regional_manager_id, created_at, updated_at FROM %s WHERE regional_manager_id=$1 ORDER BY id`, entityTables[model])
		entities, err := r.list(ctx, model, query, regionalManagerID)
		if err != nil {
			return nil, err
		}
		result = append(result, entities...)
	}
	return result, nil
}

func (r *supervisorEntityRepository) list(ctx context.Context, model domain.ManagedByModel, query string, arg any) ([]domain.SupervisorEntity, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SupervisorEntity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entity.Model = model
		result = append(result, *entity)
	}
	return result, rows.Err()
}

func scanEntity(row pgx.Row) (*domain.SupervisorEntity, error) {
	var entity domain.SupervisorEntity
	if err := row.Scan(
		&entity.ID,
		&entity.Name,
		&entity.Owner,
		&entity.RegionalManager,
		&entity.CreatedAt,
		&entity.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &entity, nil
}

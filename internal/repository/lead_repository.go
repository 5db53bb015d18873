package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// LeadRepository answers whether a lead reference resolves.
type LeadRepository interface {
	Exists(ctx context.Context, id string) (bool, error)
}

type leadRepository struct {
	pool *pgxpool.Pool
}

// NewLeadRepository builds repository.
func NewLeadRepository(pool *pgxpool.Pool) LeadRepository {
	return &leadRepository{pool: pool}
}

func (r *leadRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM leads WHERE id=$1)`, id).Scan(&exists)
	return exists, err
}

package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-projects/pkg/database"
)

// EntityRepository answers existence questions about rows in any entity table.
// Callers are responsible for passing only known table names.
type EntityRepository interface {
	Exists(ctx context.Context, table string, id uuid.UUID) (bool, error)
}

type entityRepository struct{}

// NewEntityRepository creates a new entity repository.
func NewEntityRepository() EntityRepository {
	return &entityRepository{}
}

var _ EntityRepository = (*entityRepository)(nil)

func (r *entityRepository) Exists(ctx context.Context, table string, id uuid.UUID) (bool, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return false, database.ErrNoScope
	}

	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, pgx.Identifier{table}.Sanitize())

	var exists bool
	if err := scope.Conn.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check %s existence: %w", table, err)
	}

	return exists, nil
}

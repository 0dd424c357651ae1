package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-projects/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-projects/pkg/database"
	"github.com/ekaya-inc/ekaya-projects/pkg/models"
)

// DocumentRepository defines the interface for document metadata access.
// File contents live in object storage, not here.
type DocumentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Document, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type documentRepository struct{}

// NewDocumentRepository creates a new document repository.
func NewDocumentRepository() DocumentRepository {
	return &documentRepository{}
}

var _ DocumentRepository = (*documentRepository)(nil)

const documentColumns = `id, project_id, title, file_name, content_type, size_bytes, storage_key, uploaded_by, created_at, updated_at`

func (r *documentRepository) Create(ctx context.Context, doc *models.Document) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	query := `
		INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := scope.Conn.Exec(ctx, query,
		doc.ID,
		doc.ProjectID,
		doc.Title,
		doc.FileName,
		doc.ContentType,
		doc.SizeBytes,
		doc.StorageKey,
		doc.UploadedBy,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return fmt.Errorf("project: %w", apperrors.ErrNotFound)
		}
		return fmt.Errorf("failed to create document: %w", err)
	}

	return nil
}

func (r *documentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	doc, err := scanDocument(scope.Conn.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("document %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return doc, nil
}

func (r *documentRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Document, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE project_id = $1
		ORDER BY created_at DESC`

	rows, err := scope.Conn.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	docs := make([]*models.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	return docs, nil
}

func (r *documentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	result, err := scope.Conn.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func scanDocument(row pgx.Row) (*models.Document, error) {
	var d models.Document
	err := row.Scan(
		&d.ID,
		&d.ProjectID,
		&d.Title,
		&d.FileName,
		&d.ContentType,
		&d.SizeBytes,
		&d.StorageKey,
		&d.UploadedBy,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-projects/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-projects/pkg/auth"
	"github.com/ekaya-inc/ekaya-projects/pkg/models"
	"github.com/ekaya-inc/ekaya-projects/pkg/repositories"
	"github.com/ekaya-inc/ekaya-projects/pkg/storage"
)

// DefaultMaxUploadBytes applies when no upload limit is configured.
const DefaultMaxUploadBytes int64 = 25 << 20

// UploadInput describes one uploaded file.
type UploadInput struct {
	Title       string
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// DocumentService defines the interface for document operations.
type DocumentService interface {
	Upload(ctx context.Context, projectID uuid.UUID, in UploadInput) (*models.Document, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Document, error)
	// Open returns the document with a reader over its content. The caller must close it.
	Open(ctx context.Context, id uuid.UUID) (*models.Document, io.ReadCloser, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type documentService struct {
	documents repositories.DocumentRepository
	projects  repositories.ProjectRepository
	access    ProjectAccess
	objects   storage.ObjectStore
	audit     AuditService
	maxBytes  int64
	logger    *zap.Logger
}

// NewDocumentService creates a new document service.
// maxBytes <= 0 selects DefaultMaxUploadBytes.
func NewDocumentService(
	documents repositories.DocumentRepository,
	projects repositories.ProjectRepository,
	access ProjectAccess,
	objects storage.ObjectStore,
	audit AuditService,
	maxBytes int64,
	logger *zap.Logger,
) DocumentService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &documentService{
		documents: documents,
		projects:  projects,
		access:    access,
		objects:   objects,
		audit:     audit,
		maxBytes:  maxBytes,
		logger:    logger.Named("document-service"),
	}
}

var _ DocumentService = (*documentService)(nil)

func (s *documentService) Upload(ctx context.Context, projectID uuid.UUID, in UploadInput) (*models.Document, error) {
	if _, err := s.projects.GetByID(ctx, projectID); err != nil {
		return nil, err
	}
	p, err := s.access.AuthorizeMember(ctx, auth.OpDocumentUpload, projectID)
	if err != nil {
		return nil, err
	}

	verr := &apperrors.ValidationError{}
	if in.Body == nil || in.Size <= 0 {
		verr.Add("file", "is required")
	} else if in.Size > s.maxBytes {
		verr.Add("file", fmt.Sprintf("must be at most %d bytes", s.maxBytes))
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = strings.TrimSpace(in.FileName)
	}
	if title == "" || len([]rune(title)) > maxNameLength {
		verr.Add("title", fmt.Sprintf("must be between 1 and %d characters", maxNameLength))
	}
	if verr.HasErrors() {
		return nil, verr
	}

	contentType := in.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	doc := &models.Document{
		ID:          uuid.New(),
		ProjectID:   projectID,
		Title:       title,
		FileName:    storage.SanitizeFileName(in.FileName),
		ContentType: contentType,
		SizeBytes:   in.Size,
		UploadedBy:  p.UserID,
	}
	doc.StorageKey = storage.DocumentKey(projectID, doc.ID, in.FileName)

	if err := s.objects.Put(ctx, doc.StorageKey, in.Body, in.Size, contentType); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	if err := s.documents.Create(ctx, doc); err != nil {
		if delErr := s.objects.Delete(ctx, doc.StorageKey); delErr != nil {
			s.logger.Warn("Failed to remove orphaned object",
				zap.String("key", doc.StorageKey),
				zap.Error(delErr))
		}
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{
		Action:      models.ActionUploadDocument,
		Description: fmt.Sprintf("Document %q uploaded", doc.Title),
		EntityType:  models.AuditEntityDocument,
		EntityID:    doc.ID,
		NewValue:    documentSnapshot(doc),
	})
	return doc, nil
}

func (s *documentService) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	return s.documents.GetByID(ctx, id)
}

func (s *documentService) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Document, error) {
	if _, err := s.projects.GetByID(ctx, projectID); err != nil {
		return nil, err
	}
	return s.documents.ListByProject(ctx, projectID)
}

func (s *documentService) Open(ctx context.Context, id uuid.UUID) (*models.Document, io.ReadCloser, error) {
	doc, err := s.documents.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	body, _, err := s.objects.Get(ctx, doc.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, fmt.Errorf("document content %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, nil, fmt.Errorf("failed to open document: %w", err)
	}
	return doc, body, nil
}

func (s *documentService) Delete(ctx context.Context, id uuid.UUID) error {
	doc, err := s.documents.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.access.AuthorizeLead(ctx, auth.OpDocumentDelete, doc.ProjectID, doc.UploadedBy); err != nil {
		return err
	}

	if err := s.documents.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.objects.Delete(ctx, doc.StorageKey); err != nil {
		s.logger.Error("Failed to remove document object",
			zap.String("document_id", id.String()),
			zap.String("key", doc.StorageKey),
			zap.Error(err))
	}

	s.audit.Record(ctx, AuditEntry{
		Action:      models.ActionDeleteDocument,
		Description: fmt.Sprintf("Document %q deleted", doc.Title),
		EntityType:  models.AuditEntityDocument,
		EntityID:    id,
		OldValue:    documentSnapshot(doc),
	})
	return nil
}

func documentSnapshot(d *models.Document) models.Snapshot {
	return models.Snapshot{
		"projectId":   d.ProjectID,
		"title":       d.Title,
		"fileName":    d.FileName,
		"contentType": d.ContentType,
		"sizeBytes":   d.SizeBytes,
	}
}

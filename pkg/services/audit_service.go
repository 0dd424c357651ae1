package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-projects/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-projects/pkg/models"
	"github.com/ekaya-inc/ekaya-projects/pkg/repositories"
)

// Audit query limits.
const (
	DefaultAuditLimit = 50
	MaxAuditLimit     = 500
)

// AuditEntry describes one mutation to record.
// PerformedBy defaults to the actor in the request provenance.
type AuditEntry struct {
	Action      string
	Description string
	EntityType  string
	EntityID    uuid.UUID
	OldValue    models.Snapshot
	NewValue    models.Snapshot
	PerformedBy uuid.UUID
}

// AuditService records and queries the append-only audit ledger.
type AuditService interface {
	// Record writes an entry, taking IP address and user agent from the
	// request provenance. It never fails the caller: write errors are
	// logged and nil is returned.
	Record(ctx context.Context, entry AuditEntry) *models.AuditLog

	RecentLogs(ctx context.Context, limit int) ([]*models.AuditLog, error)
	LogsForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.AuditLog, error)
	LogsForEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]*models.AuditLog, error)
	LogsByAction(ctx context.Context, action string, limit int) ([]*models.AuditLog, error)
	LogsInPeriod(ctx context.Context, start, end time.Time) ([]*models.AuditLog, error)
}

type auditService struct {
	repo   repositories.AuditRepository
	logger *zap.Logger
}

// NewAuditService creates a new AuditService.
func NewAuditService(repo repositories.AuditRepository, logger *zap.Logger) AuditService {
	return &auditService{
		repo:   repo,
		logger: logger.Named("audit-service"),
	}
}

var _ AuditService = (*auditService)(nil)

func (s *auditService) Record(ctx context.Context, entry AuditEntry) *models.AuditLog {
	log := &models.AuditLog{
		Action:      entry.Action,
		Description: entry.Description,
		EntityType:  entry.EntityType,
		EntityID:    entry.EntityID,
		OldValue:    entry.OldValue,
		NewValue:    entry.NewValue,
		PerformedBy: entry.PerformedBy,
	}

	if prov, ok := models.GetProvenance(ctx); ok {
		if log.PerformedBy == uuid.Nil {
			log.PerformedBy = prov.UserID
		}
		log.IPAddress = optionalString(prov.IPAddress)
		log.UserAgent = optionalString(prov.UserAgent)
	}

	if log.PerformedBy == uuid.Nil {
		s.logger.Warn("No actor for audit log entry",
			zap.String("action", entry.Action),
			zap.String("entity_type", entry.EntityType),
			zap.String("entity_id", entry.EntityID.String()))
		return nil
	}

	if err := s.repo.Create(ctx, log); err != nil {
		s.logger.Error("Failed to record audit log entry",
			zap.String("action", entry.Action),
			zap.String("entity_type", entry.EntityType),
			zap.String("entity_id", entry.EntityID.String()),
			zap.Error(err))
		return nil
	}

	return log
}

func (s *auditService) RecentLogs(ctx context.Context, limit int) ([]*models.AuditLog, error) {
	return s.repo.Recent(ctx, normalizeLimit(limit))
}

func (s *auditService) LogsForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.AuditLog, error) {
	return s.repo.ForUser(ctx, userID, normalizeLimit(limit))
}

func (s *auditService) LogsForEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]*models.AuditLog, error) {
	if entityType == "" {
		return nil, apperrors.NewValidationError("entityType", "is required")
	}
	return s.repo.ForEntity(ctx, entityType, entityID)
}

func (s *auditService) LogsByAction(ctx context.Context, action string, limit int) ([]*models.AuditLog, error) {
	if action == "" {
		return nil, apperrors.NewValidationError("action", "is required")
	}
	return s.repo.ByAction(ctx, action, normalizeLimit(limit))
}

func (s *auditService) LogsInPeriod(ctx context.Context, start, end time.Time) ([]*models.AuditLog, error) {
	if end.Before(start) {
		return nil, apperrors.NewValidationError("end", "must not be before start")
	}
	return s.repo.InPeriod(ctx, start, end)
}

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultAuditLimit
	case limit > MaxAuditLimit:
		return MaxAuditLimit
	default:
		return limit
	}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

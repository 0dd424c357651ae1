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

// MeetingRepository defines the interface for meeting data access.
type MeetingRepository interface {
	Create(ctx context.Context, meeting *models.Meeting) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error)
	// ListByProject returns meetings in start time order.
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Meeting, error)
	Update(ctx context.Context, meeting *models.Meeting) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type meetingRepository struct{}

// NewMeetingRepository creates a new meeting repository.
func NewMeetingRepository() MeetingRepository {
	return &meetingRepository{}
}

var _ MeetingRepository = (*meetingRepository)(nil)

const meetingColumns = `id, project_id, title, description, location, start_time, end_time, organizer_id, created_at, updated_at`

func (r *meetingRepository) Create(ctx context.Context, meeting *models.Meeting) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	if meeting.ID == uuid.Nil {
		meeting.ID = uuid.New()
	}
	now := time.Now()
	meeting.CreatedAt = now
	meeting.UpdatedAt = now

	query := `
		INSERT INTO meetings (` + meetingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := scope.Conn.Exec(ctx, query,
		meeting.ID,
		meeting.ProjectID,
		meeting.Title,
		meeting.Description,
		meeting.Location,
		meeting.StartTime,
		meeting.EndTime,
		meeting.OrganizerID,
		meeting.CreatedAt,
		meeting.UpdatedAt,
	)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return fmt.Errorf("project: %w", apperrors.ErrNotFound)
		}
		return fmt.Errorf("failed to create meeting: %w", err)
	}

	return nil
}

func (r *meetingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	meeting, err := scanMeeting(scope.Conn.QueryRow(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("meeting %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get meeting: %w", err)
	}

	return meeting, nil
}

func (r *meetingRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Meeting, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `
		SELECT ` + meetingColumns + `
		FROM meetings
		WHERE project_id = $1
		ORDER BY start_time`

	rows, err := scope.Conn.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query meetings: %w", err)
	}
	defer rows.Close()

	meetings := make([]*models.Meeting, 0)
	for rows.Next() {
		meeting, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meeting: %w", err)
		}
		meetings = append(meetings, meeting)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating meetings: %w", err)
	}

	return meetings, nil
}

func (r *meetingRepository) Update(ctx context.Context, meeting *models.Meeting) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	meeting.UpdatedAt = time.Now()

	query := `
		UPDATE meetings
		SET title = $2, description = $3, location = $4, start_time = $5, end_time = $6, updated_at = $7
		WHERE id = $1`

	result, err := scope.Conn.Exec(ctx, query,
		meeting.ID,
		meeting.Title,
		meeting.Description,
		meeting.Location,
		meeting.StartTime,
		meeting.EndTime,
		meeting.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update meeting: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *meetingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	result, err := scope.Conn.Exec(ctx, `DELETE FROM meetings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete meeting: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func scanMeeting(row pgx.Row) (*models.Meeting, error) {
	var m models.Meeting
	err := row.Scan(
		&m.ID,
		&m.ProjectID,
		&m.Title,
		&m.Description,
		&m.Location,
		&m.StartTime,
		&m.EndTime,
		&m.OrganizerID,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

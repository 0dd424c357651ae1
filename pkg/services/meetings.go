package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-projects/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-projects/pkg/auth"
	"github.com/ekaya-inc/ekaya-projects/pkg/models"
	"github.com/ekaya-inc/ekaya-projects/pkg/repositories"
)

// MeetingInput carries the editable meeting fields. On update, nil fields are left unchanged.
type MeetingInput struct {
	Title       *string
	Description *string
	Location    *string
	StartTime   *time.Time
	EndTime     *time.Time
}

// MeetingService defines the interface for meeting operations.
type MeetingService interface {
	Create(ctx context.Context, projectID uuid.UUID, in MeetingInput) (*models.Meeting, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Meeting, error)
	Update(ctx context.Context, id uuid.UUID, in MeetingInput) (*models.Meeting, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type meetingService struct {
	meetings repositories.MeetingRepository
	projects repositories.ProjectRepository
	access   ProjectAccess
	audit    AuditService
	logger   *zap.Logger
}

// NewMeetingService creates a new meeting service.
func NewMeetingService(
	meetings repositories.MeetingRepository,
	projects repositories.ProjectRepository,
	access ProjectAccess,
	audit AuditService,
	logger *zap.Logger,
) MeetingService {
	return &meetingService{
		meetings: meetings,
		projects: projects,
		access:   access,
		audit:    audit,
		logger:   logger.Named("meeting-service"),
	}
}

var _ MeetingService = (*meetingService)(nil)

func (s *meetingService) Create(ctx context.Context, projectID uuid.UUID, in MeetingInput) (*models.Meeting, error) {
	if _, err := s.projects.GetByID(ctx, projectID); err != nil {
		return nil, err
	}
	p, err := s.access.AuthorizeMember(ctx, auth.OpMeetingCreate, projectID)
	if err != nil {
		return nil, err
	}

	verr := &apperrors.ValidationError{}
	if in.Title == nil {
		verr.Add("title", "is required")
	}
	if in.StartTime == nil {
		verr.Add("startTime", "is required")
	}
	if in.EndTime == nil {
		verr.Add("endTime", "is required")
	}
	if verr.HasErrors() {
		return nil, verr
	}

	meeting := &models.Meeting{ProjectID: projectID, OrganizerID: p.UserID}
	if err := applyMeetingInput(meeting, in); err != nil {
		return nil, err
	}
	if err := s.meetings.Create(ctx, meeting); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{
		Action:      models.ActionCreateMeeting,
		Description: fmt.Sprintf("Meeting %q scheduled", meeting.Title),
		EntityType:  models.AuditEntityMeeting,
		EntityID:    meeting.ID,
		NewValue:    meetingSnapshot(meeting),
	})
	return meeting, nil
}

func (s *meetingService) GetByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error) {
	return s.meetings.GetByID(ctx, id)
}

func (s *meetingService) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Meeting, error) {
	if _, err := s.projects.GetByID(ctx, projectID); err != nil {
		return nil, err
	}
	return s.meetings.ListByProject(ctx, projectID)
}

func (s *meetingService) Update(ctx context.Context, id uuid.UUID, in MeetingInput) (*models.Meeting, error) {
	meeting, err := s.meetings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.AuthorizeLead(ctx, auth.OpMeetingUpdate, meeting.ProjectID, meeting.OrganizerID); err != nil {
		return nil, err
	}

	before := meetingSnapshot(meeting)
	if err := applyMeetingInput(meeting, in); err != nil {
		return nil, err
	}
	if err := s.meetings.Update(ctx, meeting); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{
		Action:      models.ActionUpdateMeeting,
		Description: fmt.Sprintf("Meeting %q updated", meeting.Title),
		EntityType:  models.AuditEntityMeeting,
		EntityID:    meeting.ID,
		OldValue:    before,
		NewValue:    meetingSnapshot(meeting),
	})
	return meeting, nil
}

func (s *meetingService) Delete(ctx context.Context, id uuid.UUID) error {
	meeting, err := s.meetings.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.access.AuthorizeLead(ctx, auth.OpMeetingDelete, meeting.ProjectID, meeting.OrganizerID); err != nil {
		return err
	}

	if err := s.meetings.Delete(ctx, id); err != nil {
		return err
	}

	s.audit.Record(ctx, AuditEntry{
		Action:      models.ActionDeleteMeeting,
		Description: fmt.Sprintf("Meeting %q cancelled", meeting.Title),
		EntityType:  models.AuditEntityMeeting,
		EntityID:    id,
		OldValue:    meetingSnapshot(meeting),
	})
	return nil
}

func applyMeetingInput(m *models.Meeting, in MeetingInput) error {
	verr := &apperrors.ValidationError{}
	if in.Title != nil {
		m.Title = strings.TrimSpace(*in.Title)
		if m.Title == "" || utf8.RuneCountInString(m.Title) > maxNameLength {
			verr.Add("title", fmt.Sprintf("must be between 1 and %d characters", maxNameLength))
		}
	}
	if in.Description != nil {
		m.Description = strings.TrimSpace(*in.Description)
	}
	if in.Location != nil {
		m.Location = strings.TrimSpace(*in.Location)
	}
	if in.StartTime != nil {
		m.StartTime = in.StartTime.UTC()
	}
	if in.EndTime != nil {
		m.EndTime = in.EndTime.UTC()
	}
	if !m.EndTime.After(m.StartTime) {
		verr.Add("endTime", "must be after startTime")
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

func meetingSnapshot(m *models.Meeting) models.Snapshot {
	return models.Snapshot{
		"projectId": m.ProjectID,
		"title":     m.Title,
		"location":  m.Location,
		"startTime": m.StartTime,
		"endTime":   m.EndTime,
	}
}

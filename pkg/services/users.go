package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
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

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 8

// RegisterInput is a self-service sign-up request.
type RegisterInput struct {
	Name     string
	Username string
	Email    string
	Password string
}

// CreateUserInput is an admin request to create a user with any global role.
type CreateUserInput struct {
	RegisterInput
	Role models.GlobalRole
}

// UpdateUserInput is a partial update. Nil fields are left unchanged.
type UpdateUserInput struct {
	Name     *string
	Username *string
	Email    *string
	Password *string
	Role     *models.GlobalRole
}

// Session is the result of a successful register or login.
type Session struct {
	User   *models.User
	Token  string
	Claims *auth.Claims
}

// UserService defines the interface for account operations.
type UserService interface {
	Register(ctx context.Context, in RegisterInput) (*Session, error)
	Login(ctx context.Context, login, password string) (*Session, error)
	Logout(ctx context.Context, claims *auth.Claims) error

	Create(ctx context.Context, in CreateUserInput) (*models.User, error)
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	List(ctx context.Context, includeInactive bool) ([]*models.User, error)
	Update(ctx context.Context, id uuid.UUID, in UpdateUserInput) (*models.User, error)
	// Deactivate disables the account. Users are never hard-deleted.
	Deactivate(ctx context.Context, id uuid.UUID) error

	// EnsureAdmin creates an admin account at startup unless a user with the
	// same email already exists. Reports whether an account was created.
	EnsureAdmin(ctx context.Context, in RegisterInput) (*models.User, bool, error)
}

type userService struct {
	users   repositories.UserRepository
	tokens  auth.TokenIssuer
	revoked auth.RevocationStore
	audit   AuditService
	logger  *zap.Logger
}

// NewUserService creates a new user service with dependencies.
func NewUserService(
	users repositories.UserRepository,
	tokens auth.TokenIssuer,
	revoked auth.RevocationStore,
	audit AuditService,
	logger *zap.Logger,
) UserService {
	if revoked == nil {
		revoked = auth.NewRevocationStore(nil)
	}
	return &userService{
		users:   users,
		tokens:  tokens,
		revoked: revoked,
		audit:   audit,
		logger:  logger.Named("user-service"),
	}
}

var _ UserService = (*userService)(nil)

func (s *userService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	user, err := s.create(ctx, in, models.RoleConsultant)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{
		Action:      models.ActionRegisterUser,
		Description: "User registered",
		EntityType:  models.AuditEntityUser,
		EntityID:    user.ID,
		NewValue:    userSnapshot(user),
		PerformedBy: user.ID,
	})

	return s.issue(user)
}

func (s *userService) Login(ctx context.Context, login, password string) (*Session, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, apperrors.ErrInvalidCredentials
	}

	user, err := s.users.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := auth.CheckPassword(user.PasswordHash, password)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		return nil, apperrors.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrUnauthorized, apperrors.ErrInactiveUser)
	}

	now := time.Now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("Failed to record last login", zap.String("user_id", user.ID.String()), zap.Error(err))
	} else {
		user.LastLoginAt = &now
	}

	s.audit.Record(ctx, AuditEntry{
		Action:      models.ActionLoginUser,
		Description: "User logged in",
		EntityType:  models.AuditEntityUser,
		EntityID:    user.ID,
		PerformedBy: user.ID,
	})

	return s.issue(user)
}

func (s *userService) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil {
		return apperrors.ErrUnauthorized
	}

	if claims.ID != "" && claims.ExpiresAt != nil {
		if err := s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			return fmt.Errorf("failed to revoke token: %w", err)
		}
	}

	userID, err := uuid.Parse(claims.Subject)
	if err == nil {
		s.audit.Record(ctx, AuditEntry{
			Action:      models.ActionLogoutUser,
			Description: "User logged out",
			EntityType:  models.AuditEntityUser,
			EntityID:    userID,
			PerformedBy: userID,
		})
	}
	return nil
}

func (s *userService) Create(ctx context.Context, in CreateUserInput) (*models.User, error) {
	if _, err := requireRole(ctx, auth.OpUserCreate); err != nil {
		return nil, err
	}
	if !models.IsValidRole(string(in.Role)) {
		return nil, apperrors.NewValidationError("role", "must be one of admin, project_manager, consultant")
	}

	user, err := s.create(ctx, in.RegisterInput, in.Role)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{
		Action:      models.ActionCreateUser,
		Description: fmt.Sprintf("User %s created with role %s", user.Username, user.Role),
		EntityType:  models.AuditEntityUser,
		EntityID:    user.ID,
		NewValue:    userSnapshot(user),
	})
	return user, nil
}

func (s *userService) EnsureAdmin(ctx context.Context, in RegisterInput) (*models.User, bool, error) {
	existing, err := s.users.GetByLogin(ctx, strings.TrimSpace(in.Email))
	if err == nil {
		if existing.Role != models.RoleAdmin {
			s.logger.Warn("Bootstrap admin email belongs to a non-admin account",
				zap.String("user_id", existing.ID.String()),
				zap.String("role", string(existing.Role)))
		}
		return existing, false, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, false, err
	}

	user, err := s.create(ctx, in, models.RoleAdmin)
	if err != nil {
		return nil, false, err
	}

	s.audit.Record(ctx, AuditEntry{
		Action:      models.ActionCreateUser,
		Description: fmt.Sprintf("Bootstrap admin %s created", user.Username),
		EntityType:  models.AuditEntityUser,
		EntityID:    user.ID,
		NewValue:    userSnapshot(user),
		PerformedBy: user.ID,
	})
	return user, true, nil
}

func (s *userService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *userService) List(ctx context.Context, includeInactive bool) ([]*models.User, error) {
	return s.users.List(ctx, includeInactive)
}

func (s *userService) Update(ctx context.Context, id uuid.UUID, in UpdateUserInput) (*models.User, error) {
	p, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if !auth.Allowed(auth.OpUserUpdate, p.Role, p.UserID == id) {
		return nil, fmt.Errorf("%w: may only edit your own profile", apperrors.ErrForbidden)
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	before := userSnapshot(user)

	verr := &apperrors.ValidationError{}
	if in.Name != nil {
		user.Name = strings.TrimSpace(*in.Name)
	}
	if in.Username != nil {
		user.Username = strings.TrimSpace(*in.Username)
	}
	if in.Email != nil {
		user.Email = strings.TrimSpace(*in.Email)
	}
	validateProfile(verr, user.Name, user.Username, user.Email)
	if in.Password != nil {
		if validatePassword(verr, *in.Password) {
			hash, err := auth.HashPassword(*in.Password)
			if err != nil {
				return nil, err
			}
			user.PasswordHash = hash
		}
	}
	if in.Role != nil && *in.Role != user.Role {
		if !auth.RoleAllowed(auth.OpUserChangeRole, p.Role) {
			return nil, fmt.Errorf("%w: only admins may change roles", apperrors.ErrForbidden)
		}
		if !models.IsValidRole(string(*in.Role)) {
			verr.Add("role", "must be one of admin, project_manager, consultant")
		}
		user.Role = *in.Role
	}
	if verr.HasErrors() {
		return nil, verr
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{
		Action:      models.ActionUpdateUser,
		Description: "User profile updated",
		EntityType:  models.AuditEntityUser,
		EntityID:    user.ID,
		OldValue:    before,
		NewValue:    userSnapshot(user),
	})
	return user, nil
}

func (s *userService) Deactivate(ctx context.Context, id uuid.UUID) error {
	p, err := requireRole(ctx, auth.OpUserDeactivate)
	if err != nil {
		return err
	}
	if p.UserID == id {
		return fmt.Errorf("%w: cannot deactivate your own account", apperrors.ErrForbidden)
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !user.IsActive {
		return nil
	}

	if err := s.users.SetActive(ctx, id, false); err != nil {
		return err
	}

	s.audit.Record(ctx, AuditEntry{
		Action:      models.ActionDeactivateUser,
		Description: fmt.Sprintf("User %s deactivated", user.Username),
		EntityType:  models.AuditEntityUser,
		EntityID:    id,
		OldValue:    models.Snapshot{"isActive": true},
		NewValue:    models.Snapshot{"isActive": false},
	})
	return nil
}

func (s *userService) create(ctx context.Context, in RegisterInput, role models.GlobalRole) (*models.User, error) {
	user := &models.User{
		Name:     strings.TrimSpace(in.Name),
		Username: strings.TrimSpace(in.Username),
		Email:    strings.TrimSpace(in.Email),
		Role:     role,
		IsActive: true,
	}

	verr := &apperrors.ValidationError{}
	validateProfile(verr, user.Name, user.Username, user.Email)
	validatePassword(verr, in.Password)
	if verr.HasErrors() {
		return nil, verr
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userService) issue(user *models.User) (*Session, error) {
	token, claims, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &Session{User: user, Token: token, Claims: claims}, nil
}

func validateProfile(verr *apperrors.ValidationError, name, username, email string) {
	if name == "" {
		verr.Add("name", "is required")
	}
	if n := utf8.RuneCountInString(username); n < 3 || n > 50 {
		verr.Add("username", "must be between 3 and 50 characters")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		verr.Add("email", "must be a valid email address")
	}
}

func validatePassword(verr *apperrors.ValidationError, password string) bool {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		verr.Add("password", fmt.Sprintf("must be at least %d characters", MinPasswordLength))
		return false
	}
	return true
}

func userSnapshot(u *models.User) models.Snapshot {
	return models.Snapshot{
		"name":     u.Name,
		"username": u.Username,
		"email":    u.Email,
		"role":     u.Role,
		"isActive": u.IsActive,
	}
}

// requireRole checks a role-only operation against the caller in ctx.
func requireRole(ctx context.Context, op auth.Operation) (*auth.Principal, error) {
	p, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if !auth.RoleAllowed(op, p.Role) {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrForbidden, op)
	}
	return p, nil
}

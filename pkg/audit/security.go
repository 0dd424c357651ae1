// Package audit provides security audit logging for SIEM consumption.
// It logs authentication events in structured JSON format so they can be
// filtered and alerted on separately from the persisted activity log.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-projects/pkg/auth"
	"github.com/ekaya-inc/ekaya-projects/pkg/models"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventLoginFailure is logged when credentials are rejected.
	EventLoginFailure SecurityEventType = "login_failure"
	// EventLoginSuccess is logged when a session token is issued.
	EventLoginSuccess SecurityEventType = "login_success"
	// EventLogout is logged when a token is revoked by its holder.
	EventLogout SecurityEventType = "logout"
)

// SecurityEvent represents an auditable security event with all relevant context
// for SIEM ingestion and analysis.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	ClientIP  string            `json:"client_ip,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Details   any               `json:"details,omitempty"`
	Severity  string            `json:"severity"` // info, warning, critical
}

// LoginFailureDetails describes a rejected login.
type LoginFailureDetails struct {
	Login  string `json:"login"`
	Reason string `json:"reason"`
}

// SecurityAuditor logs security events for SIEM consumption.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor under the "security_audit"
// logger namespace.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogLoginFailure records rejected credentials at WARN level.
// Repeated failures for one login or address are what alerting keys on.
func (a *SecurityAuditor) LogLoginFailure(ctx context.Context, login, reason string) {
	event := a.event(ctx, EventLoginFailure, "warning")
	event.Details = LoginFailureDetails{Login: login, Reason: reason}

	a.logger.Warn("Login rejected",
		zap.String("event_json", marshal(event)),
		zap.String("login", login),
		zap.String("reason", reason),
		zap.String("client_ip", event.ClientIP),
		zap.String("severity", event.Severity),
	)
}

// LogLoginSuccess records an issued session.
func (a *SecurityAuditor) LogLoginSuccess(ctx context.Context, user *models.User) {
	event := a.event(ctx, EventLoginSuccess, "info")
	event.UserID = user.ID.String()

	a.logger.Info("Login succeeded",
		zap.String("event_json", marshal(event)),
		zap.String("user_id", event.UserID),
		zap.String("client_ip", event.ClientIP),
		zap.String("severity", event.Severity),
	)
}

// LogLogout records a revoked session. The caller is read from the request's claims.
func (a *SecurityAuditor) LogLogout(ctx context.Context) {
	event := a.event(ctx, EventLogout, "info")
	event.UserID = auth.GetUserIDFromContext(ctx)

	a.logger.Info("Logged out",
		zap.String("event_json", marshal(event)),
		zap.String("user_id", event.UserID),
		zap.String("client_ip", event.ClientIP),
		zap.String("severity", event.Severity),
	)
}

func (a *SecurityAuditor) event(ctx context.Context, eventType SecurityEventType, severity string) SecurityEvent {
	event := SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Severity:  severity,
	}
	if p, ok := models.GetProvenance(ctx); ok {
		event.ClientIP = p.IPAddress
		event.UserAgent = p.UserAgent
	}
	return event
}

// marshal serializes known event types; it cannot fail for them.
func marshal(event SecurityEvent) string {
	b, _ := json.Marshal(event)
	return string(b)
}

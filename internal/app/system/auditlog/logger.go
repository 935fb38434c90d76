// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"strconv"

	"github.com/dalemusser/collabhub/internal/app/store/audit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
type Config struct {
	// Auth controls logging for authentication events (register, login, logout).
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Auth string
	// Membership controls logging for membership and project events.
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Membership string
}

// Logger provides convenience methods for logging audit events.
// It logs to both MongoDB (via audit.Store) and structured logs (via zap).
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
	}
	if event.RequestID != "" {
		fields = append(fields, zap.String("request_id", event.RequestID))
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.ProjectID != nil {
		fields = append(fields, zap.String("project_id", event.ProjectID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
// Request metadata carried by ctx (see Middleware) is stamped on the event.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryMembership, audit.CategoryProject:
		setting = l.config.Membership
	default:
		setting = "all"
	}
	if setting == "" {
		setting = "all"
	}
	if setting == "off" {
		return
	}

	if m, ok := MetaFrom(ctx); ok {
		if event.RequestID == "" {
			event.RequestID = m.RequestID
		}
		if event.IP == "" {
			event.IP = m.IP
		}
		if event.UserAgent == "" {
			event.UserAgent = m.UserAgent
		}
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}

	if (setting == "all" || setting == "db") && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// --- Authentication Events ---

// UserRegistered logs a new account.
func (l *Logger) UserRegistered(ctx context.Context, userID primitive.ObjectID, email string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventUserRegistered,
		UserID:    &userID,
		Success:   true,
		Details:   map[string]string{"email": email},
	})
}

// LoginSuccess logs a successful login.
func (l *Logger) LoginSuccess(ctx context.Context, userID primitive.ObjectID, email string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		UserID:    &userID,
		Success:   true,
		Details:   map[string]string{"email": email},
	})
}

// LoginFailedUserNotFound logs a login attempt for an unknown email.
func (l *Logger) LoginFailedUserNotFound(ctx context.Context, email string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedUserNotFound,
		Success:       false,
		FailureReason: "user not found",
		Details:       map[string]string{"attempted_email": email},
	})
}

// LoginFailedWrongPassword logs a bad password for a known user.
func (l *Logger) LoginFailedWrongPassword(ctx context.Context, userID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedWrongPassword,
		UserID:        &userID,
		Success:       false,
		FailureReason: "wrong password",
	})
}

// Logout logs a sign-out.
func (l *Logger) Logout(ctx context.Context, userID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLogout,
		UserID:    &userID,
		Success:   true,
	})
}

// --- Membership Events ---

func (l *Logger) membership(ctx context.Context, eventType string, actorID, userID *primitive.ObjectID, projectID primitive.ObjectID, details map[string]string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryMembership,
		EventType: eventType,
		ActorID:   actorID,
		UserID:    userID,
		ProjectID: &projectID,
		Success:   true,
		Details:   details,
	})
}

// ProjectCreated logs project creation.
func (l *Logger) ProjectCreated(ctx context.Context, ownerID, projectID primitive.ObjectID, name string) {
	l.membership(ctx, audit.EventProjectCreated, &ownerID, &ownerID, projectID, map[string]string{"name": name})
}

// ProjectDeleted logs a completed cascade delete. A nil actor means the
// background sweeper finished it.
func (l *Logger) ProjectDeleted(ctx context.Context, actorID *primitive.ObjectID, projectID primitive.ObjectID, tasks, users int64) {
	details := map[string]string{
		"tasks_deleted":  strconv.FormatInt(tasks, 10),
		"users_unlinked": strconv.FormatInt(users, 10),
	}
	if actorID == nil {
		details["resumed_by"] = "sweeper"
	}
	l.membership(ctx, audit.EventProjectDeleted, actorID, nil, projectID, details)
}

// RoleAssigned logs a role change.
func (l *Logger) RoleAssigned(ctx context.Context, actorID, targetID, projectID primitive.ObjectID, from, to string) {
	l.membership(ctx, audit.EventRoleAssigned, &actorID, &targetID, projectID, map[string]string{"from": from, "to": to})
}

// MemberRemoved logs an administrator removing a member.
func (l *Logger) MemberRemoved(ctx context.Context, actorID, targetID, projectID primitive.ObjectID) {
	l.membership(ctx, audit.EventMemberRemoved, &actorID, &targetID, projectID, nil)
}

// MemberLeft logs a member leaving on their own.
func (l *Logger) MemberLeft(ctx context.Context, userID, projectID primitive.ObjectID) {
	l.membership(ctx, audit.EventMemberLeft, &userID, &userID, projectID, nil)
}

// MemberJoined logs an invite redemption.
func (l *Logger) MemberJoined(ctx context.Context, userID, projectID primitive.ObjectID, role string) {
	l.membership(ctx, audit.EventMemberJoined, &userID, &userID, projectID, map[string]string{"role": role})
}

// InviteIssued logs an invite request; reused is true when the live token
// was returned instead of a new one.
func (l *Logger) InviteIssued(ctx context.Context, actorID, projectID primitive.ObjectID, reused bool) {
	l.membership(ctx, audit.EventInviteIssued, &actorID, nil, projectID, map[string]string{"reused": strconv.FormatBool(reused)})
}

// InvitesDisabled logs revocation of every invite of a project.
func (l *Logger) InvitesDisabled(ctx context.Context, actorID, projectID primitive.ObjectID, revoked int64) {
	l.membership(ctx, audit.EventInvitesDisabled, &actorID, nil, projectID, map[string]string{"revoked": strconv.FormatInt(revoked, 10)})
}

// InvitesPurged logs the expiry job's sweep. It is not tied to a project.
func (l *Logger) InvitesPurged(ctx context.Context, count int64) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryMembership,
		EventType: audit.EventInvitesPurged,
		Success:   true,
		Details:   map[string]string{"count": strconv.FormatInt(count, 10)},
	})
}

// SettingsUpdated logs a settings change.
func (l *Logger) SettingsUpdated(ctx context.Context, actorID, projectID primitive.ObjectID, linkJoin, pdfExport bool) {
	l.membership(ctx, audit.EventSettingsUpdated, &actorID, nil, projectID, map[string]string{
		"link_join_enabled":  strconv.FormatBool(linkJoin),
		"pdf_export_enabled": strconv.FormatBool(pdfExport),
	})
}

// MembershipDenied logs a guard rejecting a membership operation.
func (l *Logger) MembershipDenied(ctx context.Context, actorID, projectID primitive.ObjectID, target *primitive.ObjectID, op string, reason error) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryMembership,
		EventType:     audit.EventMembershipDenied,
		ActorID:       &actorID,
		UserID:        target,
		ProjectID:     &projectID,
		Success:       false,
		FailureReason: reason.Error(),
		Details:       map[string]string{"operation": op},
	})
}

// --- Project content events ---

// TaskEvent logs a task create/update/delete.
func (l *Logger) TaskEvent(ctx context.Context, eventType string, actorID, projectID, taskID primitive.ObjectID, details map[string]string) {
	if details == nil {
		details = map[string]string{}
	}
	details["task_id"] = taskID.Hex()
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryProject,
		EventType: eventType,
		ActorID:   &actorID,
		ProjectID: &projectID,
		Success:   true,
		Details:   details,
	})
}

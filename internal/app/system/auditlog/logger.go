// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"

	"github.com/globaltrotter/globaltrotter/internal/app/store/audit"
	"github.com/globaltrotter/globaltrotter/internal/app/system/ratelimit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
type Config struct {
	// Auth controls logging for account events (register, login, verification, logout).
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Auth string
	// Trips controls logging for trip creation and updates. Same values as Auth.
	Trips string
}

// Valid reports whether v is a recognized destination setting.
func Valid(v string) bool {
	switch v {
	case "all", "db", "log", "off":
		return true
	}
	return false
}

// Logger provides convenience methods for logging audit events.
// It logs to MongoDB (via audit.Store) and to structured logs (via zap).
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
		zap.String("ip", event.IP),
	}
	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.Email != "" {
		fields = append(fields, zap.String("email", event.Email))
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
// A nil Logger is a no-op, so handlers and tests may leave it unset.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryTrips:
		setting = l.config.Trips
	}
	if setting == "" {
		setting = "all"
	}
	if setting == "off" {
		return
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}

	if (setting == "all" || setting == "db") && l.store != nil {
		if err := l.store.Log(context.WithoutCancel(ctx), event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func objectID(hex string) *primitive.ObjectID {
	if oid, err := primitive.ObjectIDFromHex(hex); err == nil {
		return &oid
	}
	return nil
}

func authEvent(r *http.Request, eventType string, success bool) audit.Event {
	return audit.Event{
		Category:  audit.CategoryAuth,
		EventType: eventType,
		IP:        ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   success,
	}
}

// --- Account Events ---

// Registered logs a new account. method is "email" or "external".
func (l *Logger) Registered(ctx context.Context, r *http.Request, userID, email, method string) {
	e := authEvent(r, audit.EventRegistered, true)
	e.UserID = objectID(userID)
	e.Email = email
	e.Details = map[string]string{"auth_method": method}
	l.Log(ctx, e)
}

// LoginSuccess logs a successful login.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID, email, method string) {
	e := authEvent(r, audit.EventLoginSuccess, true)
	e.UserID = objectID(userID)
	e.Email = email
	e.Details = map[string]string{"auth_method": method}
	l.Log(ctx, e)
}

// LoginFailed logs a rejected login. identifier is what the caller typed.
func (l *Logger) LoginFailed(ctx context.Context, r *http.Request, identifier, method, reason string) {
	e := authEvent(r, audit.EventLoginFailed, false)
	e.Email = identifier
	e.FailureReason = reason
	e.Details = map[string]string{"auth_method": method}
	l.Log(ctx, e)
}

// LoginRateLimited logs an attempt refused by the auth rate limiter.
func (l *Logger) LoginRateLimited(ctx context.Context, r *http.Request, identifier string) {
	e := authEvent(r, audit.EventLoginRateLimited, false)
	e.Email = identifier
	e.FailureReason = "rate limit exceeded"
	e.Details = map[string]string{"path": r.URL.Path}
	l.Log(ctx, e)
}

// EmailVerified logs a consumed verification link.
func (l *Logger) EmailVerified(ctx context.Context, r *http.Request, userID, email string) {
	e := authEvent(r, audit.EventEmailVerified, true)
	e.UserID = objectID(userID)
	e.Email = email
	l.Log(ctx, e)
}

// VerificationResent logs a resend request. It is recorded whether or not
// the email has an account.
func (l *Logger) VerificationResent(ctx context.Context, r *http.Request, email string) {
	e := authEvent(r, audit.EventVerificationResent, true)
	e.Email = email
	l.Log(ctx, e)
}

// TokenRefreshed logs a refresh-token rotation.
func (l *Logger) TokenRefreshed(ctx context.Context, r *http.Request, userID string) {
	e := authEvent(r, audit.EventTokenRefreshed, true)
	e.UserID = objectID(userID)
	l.Log(ctx, e)
}

// Logout logs a user logout.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userID string) {
	e := authEvent(r, audit.EventLogout, true)
	e.UserID = objectID(userID)
	l.Log(ctx, e)
}

// --- Trip Events ---

// TripCreated logs a new trip by the acting user.
func (l *Logger) TripCreated(ctx context.Context, r *http.Request, actorID, actorEmail, tripID, owner string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryTrips,
		EventType: audit.EventTripCreated,
		UserID:    objectID(actorID),
		Email:     actorEmail,
		IP:        ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details: map[string]string{
			"trip_id": tripID,
			"owner":   owner,
		},
	})
}

// TripUpdated logs an update to a trip by the acting user.
func (l *Logger) TripUpdated(ctx context.Context, r *http.Request, actorID, actorEmail, tripID string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryTrips,
		EventType: audit.EventTripUpdated,
		UserID:    objectID(actorID),
		Email:     actorEmail,
		IP:        ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details:   map[string]string{"trip_id": tripID},
	})
}

// internal/app/features/auditlog/handler.go
package auditlog

import (
	"context"
	"time"

	uierrors "github.com/globaltrotter/globaltrotter/internal/app/features/errors"
	"github.com/globaltrotter/globaltrotter/internal/app/store/audit"
	"go.uber.org/zap"
)

// EventSource is the read side of the audit store (*audit.Store).
type EventSource interface {
	Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Event, error)
	CountByFilter(ctx context.Context, filter audit.QueryFilter) (int64, error)
	GetFailedLogins(ctx context.Context, since time.Time, limit int64) ([]audit.Event, error)
}

type Handler struct {
	Events EventSource
	Log    *zap.Logger
	ErrLog *uierrors.ErrorLogger
	Now    func() time.Time
}

// NewHandler constructs an audit log feature handler.
func NewHandler(events EventSource, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Events: events,
		Log:    logger,
		ErrLog: errLog,
		Now:    time.Now,
	}
}

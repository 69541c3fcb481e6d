// internal/app/features/analytics/handler.go
package analytics

import (
	"context"
	"net/http"
	"time"

	uierrors "github.com/globaltrotter/globaltrotter/internal/app/features/errors"
	"github.com/globaltrotter/globaltrotter/internal/app/system/auth"
	"github.com/globaltrotter/globaltrotter/internal/app/system/timeouts"
	"github.com/globaltrotter/globaltrotter/internal/app/system/tripclass"
	"github.com/globaltrotter/globaltrotter/internal/domain/models"
	"go.uber.org/zap"
)

// TripSource loads the trips to summarize (*tripsvc.Service).
type TripSource interface {
	ListTripsForUser(ctx context.Context, email string) ([]models.Trip, error)
	AllTrips(ctx context.Context) ([]models.Trip, error)
}

// Handler serves the dashboard summaries.
type Handler struct {
	Trips  TripSource
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
	Now    func() time.Time
}

// NewHandler constructs an analytics Handler.
func NewHandler(trips TripSource, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Trips: trips, ErrLog: errLog, Log: logger, Now: time.Now}
}

// ServeMine handles GET /api/analytics: a summary of the caller's trips.
func (h *Handler) ServeMine(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	trips, err := h.Trips.ListTripsForUser(ctx, u.Email)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, tripclass.Summarize(trips, h.Now()))
}

// ServeAll handles GET /api/analytics/all: a summary over every trip.
func (h *Handler) ServeAll(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	trips, err := h.Trips.AllTrips(ctx)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, tripclass.Summarize(trips, h.Now()))
}

// internal/app/features/auditlog/list.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/waffle/pantry/query"
	uierrors "github.com/globaltrotter/globaltrotter/internal/app/features/errors"
	"github.com/globaltrotter/globaltrotter/internal/app/store/audit"
	"github.com/globaltrotter/globaltrotter/internal/app/system/normalize"
	"github.com/globaltrotter/globaltrotter/internal/app/system/paging"
	"github.com/globaltrotter/globaltrotter/internal/app/system/timeouts"
	"github.com/globaltrotter/globaltrotter/internal/domain/apperr"
	"go.uber.org/zap"
)

type listResponse struct {
	Events []audit.Event `json:"events"`
	Total  int64         `json:"total"`
	Range  paging.Range  `json:"range"`
}

// ServeList handles GET /api/admin/audit. Filters: category, event_type,
// email, start_date and end_date (calendar dates, end inclusive), plus the
// usual start/limit paging.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	page := paging.ParsePage(r)
	filter.Offset = page.Skip()
	filter.Limit = page.LimitPlusOne()

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	events, err := h.Events.Query(ctx, filter)
	if err != nil {
		h.Log.Error("failed to query audit events", zap.Error(err))
		h.ErrLog.Write(w, r, apperr.ErrPersistence)
		return
	}
	total, err := h.Events.CountByFilter(ctx, filter)
	if err != nil {
		h.Log.Error("failed to count audit events", zap.Error(err))
		h.ErrLog.Write(w, r, apperr.ErrPersistence)
		return
	}

	hasNext := paging.Trim(&events, page.Size)
	uierrors.WriteJSON(w, http.StatusOK, listResponse{
		Events: events,
		Total:  total,
		Range:  paging.ComputeRange(page, len(events), hasNext),
	})
}

func parseFilter(r *http.Request) (audit.QueryFilter, error) {
	filter := audit.QueryFilter{
		Category:  strings.TrimSpace(query.Get(r, "category")),
		EventType: strings.TrimSpace(query.Get(r, "event_type")),
		Email:     normalize.Identifier(query.Get(r, "email")),
	}
	switch filter.Category {
	case "", audit.CategoryAuth, audit.CategoryTrips:
	default:
		return filter, apperr.Invalid("category", "oneof", "category must be one of: auth trips.")
	}

	if s := strings.TrimSpace(query.Get(r, "start_date")); s != "" {
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return filter, apperr.Invalid("start_date", "date", "start_date must be a date (YYYY-MM-DD).")
		}
		filter.StartTime = &t
	}
	if s := strings.TrimSpace(query.Get(r, "end_date")); s != "" {
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return filter, apperr.Invalid("end_date", "date", "end_date must be a date (YYYY-MM-DD).")
		}
		// End of day
		endOfDay := t.Add(24*time.Hour - time.Nanosecond)
		filter.EndTime = &endOfDay
	}
	return filter, nil
}

// Failed-login window, in hours.
const (
	defaultFailedHours = 24
	maxFailedHours     = 24 * 30
)

// ServeFailedLogins handles GET /api/admin/audit/failed-logins?hours=N:
// rejected and rate-limited logins in the last N hours (default 24),
// newest first.
func (h *Handler) ServeFailedLogins(w http.ResponseWriter, r *http.Request) {
	hours := defaultFailedHours
	if s := strings.TrimSpace(query.Get(r, "hours")); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxFailedHours {
			h.ErrLog.Write(w, r, apperr.Invalid("hours", "range", "hours must be between 1 and 720."))
			return
		}
		hours = n
	}
	since := h.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	events, err := h.Events.GetFailedLogins(ctx, since, paging.MaxPageSize)
	if err != nil {
		h.Log.Error("failed to query failed logins", zap.Error(err))
		h.ErrLog.Write(w, r, apperr.ErrPersistence)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, map[string]any{
		"since":  since,
		"events": events,
	})
}

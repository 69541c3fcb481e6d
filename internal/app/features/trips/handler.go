// internal/app/features/trips/handler.go
package trips

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/waffle/pantry/query"
	uierrors "github.com/globaltrotter/globaltrotter/internal/app/features/errors"
	tripsvc "github.com/globaltrotter/globaltrotter/internal/app/services/trips"
	"github.com/globaltrotter/globaltrotter/internal/app/system/auditlog"
	"github.com/globaltrotter/globaltrotter/internal/app/system/auth"
	"github.com/globaltrotter/globaltrotter/internal/app/system/draft"
	"github.com/globaltrotter/globaltrotter/internal/app/system/inputval"
	"github.com/globaltrotter/globaltrotter/internal/app/system/normalize"
	"github.com/globaltrotter/globaltrotter/internal/app/system/paging"
	"github.com/globaltrotter/globaltrotter/internal/app/system/timeouts"
	"github.com/globaltrotter/globaltrotter/internal/app/system/tripclass"
	"github.com/globaltrotter/globaltrotter/internal/domain/apperr"
	"github.com/globaltrotter/globaltrotter/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Service is the trip lifecycle as used by this feature (*tripsvc.Service).
type Service interface {
	CreateTrip(ctx context.Context, req tripsvc.CreateTripRequest) (string, error)
	UpdateTrip(ctx context.Context, id string, req tripsvc.UpdateTripRequest) (string, error)
	GetTrip(ctx context.Context, id string) (models.Trip, error)
	ListTripsForUser(ctx context.Context, email string) ([]models.Trip, error)
	ListAllTrips(ctx context.Context, p paging.Page) (tripsvc.TripPage, error)
}

// Handler serves /api/trips and /api/admin/trips.
type Handler struct {
	Trips      Service
	SessionMgr *auth.SessionManager
	Audit      *auditlog.Logger // nil disables audit events
	ErrLog     *uierrors.ErrorLogger
	Log        *zap.Logger
	Now        func() time.Time
}

// NewHandler constructs a trips Handler.
func NewHandler(svc Service, sm *auth.SessionManager, audit *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Trips:      svc,
		SessionMgr: sm,
		Audit:      audit,
		ErrLog:     errLog,
		Log:        logger,
		Now:        time.Now,
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| request bodies                                                              |
*─────────────────────────────────────────────────────────────────────────────*/

// createPayload is the JSON body of POST /api/trips. Dates are calendar
// dates ("2024-06-01") or RFC 3339 timestamps.
type createPayload struct {
	Destination string          `json:"destination"`
	StartDate   string          `json:"start_date"`
	EndDate     string          `json:"end_date"`
	TotalBudget *float64        `json:"total_budget"`
	TotalDays   *int            `json:"total_days"`
	UserEmail   string          `json:"user_email"`
	Sections    []draft.Section `json:"sections"`
}

// updatePayload is the JSON body of PATCH /api/trips/{id}.
type updatePayload struct {
	Destination *string                 `json:"destination"`
	StartDate   *string                 `json:"start_date"`
	EndDate     *string                 `json:"end_date"`
	TotalBudget *float64                `json:"total_budget"`
	TotalDays   *int                    `json:"total_days"`
	UserEmail   *string                 `json:"user_email"`
	Sections    *[]tripsvc.SectionInput `json:"sections"`
}

// parseDates parses the non-empty date fields named in raw, collecting
// every failure.
func parseDates(raw map[string]*string) (map[string]time.Time, error) {
	var res inputval.Result
	out := map[string]time.Time{}
	for _, field := range []string{"start_date", "end_date"} {
		s := raw[field]
		if s == nil || strings.TrimSpace(*s) == "" {
			continue
		}
		t, err := models.ParseDate(strings.TrimSpace(*s))
		if err != nil {
			res.Add(field, "date", field+" must be a date like 2024-06-01.")
			continue
		}
		out[field] = t
	}
	return out, res.Err()
}

// owner returns the email a new or updated trip should belong to. Only
// admins may assign trips to someone else.
func (h *Handler) owner(u *auth.SessionUser, requested string) string {
	requested = normalize.Email(requested)
	if requested != "" && h.SessionMgr != nil && h.SessionMgr.IsAdmin(u) {
		return requested
	}
	return normalize.Email(u.Email)
}

// canAccess reports whether u may read or change t.
func (h *Handler) canAccess(u *auth.SessionUser, t models.Trip) bool {
	if t.UserEmail == "" || strings.EqualFold(t.UserEmail, u.Email) {
		return true
	}
	return h.SessionMgr != nil && h.SessionMgr.IsAdmin(u)
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /api/trips                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)

	var in createPayload
	if err := uierrors.DecodeJSON(w, r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	dates, err := parseDates(map[string]*string{"start_date": &in.StartDate, "end_date": &in.EndDate})
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	d := draft.Draft{
		Destination: in.Destination,
		StartDate:   dates["start_date"],
		EndDate:     dates["end_date"],
		Sections:    in.Sections,
	}
	req := d.ToCreateRequest(h.owner(u, in.UserEmail))
	req.TotalBudget = in.TotalBudget
	req.TotalDays = in.TotalDays

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	id, err := h.Trips.CreateTrip(ctx, req)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if u != nil {
		h.Audit.TripCreated(ctx, r, u.ID, u.Email, id, req.UserEmail)
	}
	uierrors.WriteJSON(w, http.StatusCreated, map[string]string{"id": id})
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /api/trips?status=&sort=&order=&q=                                      |
*─────────────────────────────────────────────────────────────────────────────*/

type listResponse struct {
	Trips  []models.Trip  `json:"trips"`
	Counts map[string]int `json:"counts"`
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	all, err := h.Trips.ListTripsForUser(ctx, u.Email)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	list := tripclass.FilterByDestination(all, query.Get(r, "q"))
	buckets := tripclass.Classify(list, h.Now())
	if status, ok := tripclass.ParseStatus(query.Get(r, "status")); ok {
		list = buckets.Of(status)
	}
	if key := query.Get(r, "sort"); key != "" {
		list = tripclass.SortBy(list, tripclass.ParseSortKey(key), normalize.QueryParam(query.Get(r, "order")) == "asc")
	}

	uierrors.WriteJSON(w, http.StatusOK, listResponse{
		Trips: list,
		Counts: map[string]int{
			string(tripclass.Ongoing):   len(buckets.Ongoing),
			string(tripclass.Upcoming):  len(buckets.Upcoming),
			string(tripclass.Completed): len(buckets.Completed),
		},
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /api/trips/{id}                                                         |
*─────────────────────────────────────────────────────────────────────────────*/

type tripResponse struct {
	models.Trip
	Status tripclass.Status `json:"status"`
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	t, err := h.Trips.GetTrip(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if !h.canAccess(u, t) {
		// not revealed to other users
		h.ErrLog.Write(w, r, apperr.ErrNotFound)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, tripResponse{Trip: t, Status: tripclass.StatusOf(t, h.Now())})
}

/*─────────────────────────────────────────────────────────────────────────────*
| PATCH /api/trips/{id}                                                       |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	id := chi.URLParam(r, "id")

	var in updatePayload
	if err := uierrors.DecodeJSON(w, r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	dates, err := parseDates(map[string]*string{"start_date": in.StartDate, "end_date": in.EndDate})
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	existing, err := h.Trips.GetTrip(ctx, id)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if !h.canAccess(u, existing) {
		h.ErrLog.Write(w, r, apperr.ErrNotFound)
		return
	}

	req := tripsvc.UpdateTripRequest{
		Destination: in.Destination,
		Sections:    in.Sections,
		TotalBudget: in.TotalBudget,
		TotalDays:   in.TotalDays,
	}
	if t, ok := dates["start_date"]; ok {
		req.StartDate = &t
	}
	if t, ok := dates["end_date"]; ok {
		req.EndDate = &t
	}
	if in.UserEmail != nil {
		owner := h.owner(u, *in.UserEmail)
		req.UserEmail = &owner
	}

	if _, err := h.Trips.UpdateTrip(ctx, id, req); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if u != nil {
		h.Audit.TripUpdated(ctx, r, u.ID, u.Email, id)
	}
	uierrors.WriteJSON(w, http.StatusOK, map[string]string{"id": id})
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /api/admin/trips?start=&limit=                                          |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleAdminList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	page, err := h.Trips.ListAllTrips(ctx, paging.ParsePage(r))
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, page)
}

// internal/app/features/suggestions/handler.go
package suggestions

import (
	"net/http"
	"strings"
	"time"

	uierrors "github.com/globaltrotter/globaltrotter/internal/app/features/errors"
	"github.com/globaltrotter/globaltrotter/internal/app/system/auth"
	"github.com/globaltrotter/globaltrotter/internal/app/system/draft"
	"github.com/globaltrotter/globaltrotter/internal/app/system/inputval"
	"github.com/globaltrotter/globaltrotter/internal/app/system/ratelimit"
	"github.com/globaltrotter/globaltrotter/internal/app/system/suggest"
	"github.com/globaltrotter/globaltrotter/internal/app/system/timeouts"
	"github.com/globaltrotter/globaltrotter/internal/domain/models"
	"go.uber.org/zap"
)

// Handler serves POST /api/suggestions.
type Handler struct {
	Suggest suggest.Client
	Limiter *ratelimit.Limiter // per signed-in user; nil disables
	ErrLog  *uierrors.ErrorLogger
	Log     *zap.Logger
}

// NewHandler constructs a suggestions Handler. client is usually a
// suggest.Fallback so the endpoint keeps working when the service is down.
func NewHandler(client suggest.Client, limiter *ratelimit.Limiter, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Suggest: client, Limiter: limiter, ErrLog: errLog, Log: logger}
}

type request struct {
	Location   string   `json:"location"`
	Activities []string `json:"activities"`
	StartDate  string   `json:"start_date"`
	EndDate    string   `json:"end_date"`
	Days       int      `json:"days"`
	Budget     float64  `json:"budget"`
}

type response struct {
	Suggestions []suggest.Suggestion `json:"suggestions"`
	Draft       *draft.Draft         `json:"draft,omitempty"`
}

// Serve returns candidate sections for a destination. When both dates are
// given the response also carries a draft with the suggestions laid out as
// labeled sections, ready to edit and submit to POST /api/trips.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r) {
		return
	}

	var in request
	if err := uierrors.DecodeJSON(w, r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	var res inputval.Result
	var start, end time.Time
	haveDates := strings.TrimSpace(in.StartDate) != "" && strings.TrimSpace(in.EndDate) != ""
	if haveDates {
		var err error
		if start, err = models.ParseDate(strings.TrimSpace(in.StartDate)); err != nil {
			res.Add("start_date", "date", "start_date must be a date like 2024-06-01.")
		}
		if end, err = models.ParseDate(strings.TrimSpace(in.EndDate)); err != nil {
			res.Add("end_date", "date", "end_date must be a date like 2024-06-01.")
		}
	}
	if res.HasErrors() {
		h.ErrLog.Write(w, r, res.Err())
		return
	}

	var d draft.Draft
	req := suggest.Request{
		Location:   strings.TrimSpace(in.Location),
		Activities: in.Activities,
		Days:       in.Days,
		Budget:     in.Budget,
	}
	if haveDates {
		d = draft.New(in.Location, start, end)
		req = d.SuggestRequest(in.Budget, in.Activities)
	}

	res = inputval.Validate(req)
	if res.HasErrors() {
		h.ErrLog.Write(w, r, res.Err())
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "itinerary suggestions")
	defer cancel()

	list, err := h.Suggest.Suggest(ctx, req)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	out := response{Suggestions: list}
	if haveDates {
		d = d.FromSuggestions(list)
		out.Draft = &d
	}
	uierrors.WriteJSON(w, http.StatusOK, out)
}

// allow charges the caller's suggestion quota and writes 429 when it is
// spent. Requests are keyed by user; the route only admits signed-in users.
func (h *Handler) allow(w http.ResponseWriter, r *http.Request) bool {
	if h.Limiter == nil {
		return true
	}
	key := ratelimit.ClientIP(r)
	if u, ok := auth.CurrentUser(r); ok {
		key = "user:" + u.ID
	}
	if h.Limiter.Allow(key) {
		return true
	}
	h.Log.Warn("suggestion rate limit exceeded", zap.String("key", key))
	uierrors.WriteJSON(w, http.StatusTooManyRequests, uierrors.Body{
		Error: "Too many suggestion requests. Please try again later.",
		Code:  "rate_limited",
	})
	return false
}

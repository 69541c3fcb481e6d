package auditlog_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/globaltrotter/globaltrotter/internal/app/features/auditlog"
	uierrors "github.com/globaltrotter/globaltrotter/internal/app/features/errors"
	"github.com/globaltrotter/globaltrotter/internal/app/store/audit"
	"github.com/globaltrotter/globaltrotter/internal/testutil"
	"go.uber.org/zap"
)

type listBody struct {
	Events []audit.Event `json:"events"`
	Total  int64         `json:"total"`
	Range  struct {
		Start   int  `json:"start"`
		End     int  `json:"end"`
		HasNext bool `json:"has_next"`
	} `json:"range"`
}

func newTestHandler(t *testing.T) (*auditlog.Handler, *audit.Store) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	store := audit.New(db)
	return auditlog.NewHandler(store, uierrors.NewErrorLogger(logger), logger), store
}

func seed(t *testing.T, store *audit.Store) {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	events := []audit.Event{
		{Category: audit.CategoryAuth, EventType: audit.EventLoginSuccess, Email: "ana@example.com", Success: true,
			Timestamp: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)},
		{Category: audit.CategoryAuth, EventType: audit.EventLoginFailed, Email: "ana@example.com",
			Timestamp: time.Date(2024, 3, 2, 23, 30, 0, 0, time.UTC)},
		{Category: audit.CategoryTrips, EventType: audit.EventTripCreated, Email: "ana@example.com", Success: true,
			Timestamp: time.Date(2024, 3, 3, 8, 0, 0, 0, time.UTC)},
		{Category: audit.CategoryAuth, EventType: audit.EventLogout, Email: "bo@example.com", Success: true,
			Timestamp: time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)},
	}
	for _, e := range events {
		if err := store.Log(ctx, e); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}
}

func list(t *testing.T, h *auditlog.Handler, target string) (*httptest.ResponseRecorder, listBody) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeList(rec, httptest.NewRequest("GET", target, nil))
	var body listBody
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return rec, body
}

func TestServeList_Filters(t *testing.T) {
	h, store := newTestHandler(t)
	seed(t, store)

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"all", "", 4},
		{"auth only", "?category=auth", 3},
		{"trips only", "?category=trips", 1},
		{"event type", "?event_type=login_failed", 1},
		{"email", "?email=BO@example.com", 1},
		{"end date inclusive", "?end_date=2024-03-02", 2},
		{"date window", "?start_date=2024-03-02&end_date=2024-03-03", 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := list(t, h, "/api/admin/audit"+tc.query)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			if len(body.Events) != tc.want || body.Total != int64(tc.want) {
				t.Errorf("got %d events (total %d), want %d", len(body.Events), body.Total, tc.want)
			}
		})
	}
}

func TestServeList_NewestFirstAndPaged(t *testing.T) {
	h, store := newTestHandler(t)
	seed(t, store)

	rec, body := list(t, h, "/api/admin/audit?limit=3")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(body.Events) != 3 {
		t.Fatalf("expected 3 events on the first page, got %d", len(body.Events))
	}
	if body.Events[0].EventType != audit.EventLogout {
		t.Errorf("first event = %q, want newest (logout)", body.Events[0].EventType)
	}
	if !body.Range.HasNext || body.Range.Start != 1 || body.Range.End != 3 {
		t.Errorf("range = %+v", body.Range)
	}

	_, next := list(t, h, "/api/admin/audit?limit=3&start=4")
	if len(next.Events) != 1 || next.Range.HasNext {
		t.Errorf("second page = %d events, has_next %v", len(next.Events), next.Range.HasNext)
	}
}

func TestServeList_BadInput(t *testing.T) {
	h, _ := newTestHandler(t)

	for _, q := range []string{"?category=billing", "?start_date=yesterday", "?end_date=2024-13-01"} {
		rec, _ := list(t, h, "/api/admin/audit"+q)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, rec.Code)
		}
	}
}

func TestServeFailedLogins(t *testing.T) {
	h, store := newTestHandler(t)
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	h.Now = func() time.Time { return now }

	ctx, cancel := testutil.TestContext()
	defer cancel()
	for _, e := range []audit.Event{
		{Category: audit.CategoryAuth, EventType: audit.EventLoginFailed, Email: "ana@example.com", Timestamp: now.Add(-time.Hour)},
		{Category: audit.CategoryAuth, EventType: audit.EventLoginRateLimited, Email: "ana@example.com", Timestamp: now.Add(-2 * time.Hour)},
		{Category: audit.CategoryAuth, EventType: audit.EventLoginFailed, Email: "bo@example.com", Timestamp: now.Add(-30 * time.Hour)},
		{Category: audit.CategoryAuth, EventType: audit.EventLoginSuccess, Email: "ana@example.com", Success: true, Timestamp: now.Add(-time.Hour)},
	} {
		if err := store.Log(ctx, e); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	tests := []struct {
		query string
		code  int
		want  int
	}{
		{"", http.StatusOK, 2},
		{"?hours=48", http.StatusOK, 3},
		{"?hours=0", http.StatusBadRequest, 0},
		{"?hours=soon", http.StatusBadRequest, 0},
	}
	for _, tc := range tests {
		rec := httptest.NewRecorder()
		h.ServeFailedLogins(rec, httptest.NewRequest("GET", "/api/admin/audit/failed-logins"+tc.query, nil))
		if rec.Code != tc.code {
			t.Errorf("%q: status = %d, want %d", tc.query, rec.Code, tc.code)
			continue
		}
		if tc.code != http.StatusOK {
			continue
		}
		var body struct {
			Events []audit.Event `json:"events"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(body.Events) != tc.want {
			t.Errorf("%q: got %d events, want %d", tc.query, len(body.Events), tc.want)
		}
	}
}

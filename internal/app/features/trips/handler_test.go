package trips_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	uierrors "github.com/globaltrotter/globaltrotter/internal/app/features/errors"
	"github.com/globaltrotter/globaltrotter/internal/app/features/trips"
	tripsvc "github.com/globaltrotter/globaltrotter/internal/app/services/trips"
	"github.com/globaltrotter/globaltrotter/internal/app/store/audit"
	tripstore "github.com/globaltrotter/globaltrotter/internal/app/store/trips"
	userstore "github.com/globaltrotter/globaltrotter/internal/app/store/users"
	"github.com/globaltrotter/globaltrotter/internal/app/system/auditlog"
	"github.com/globaltrotter/globaltrotter/internal/app/system/auth"
	"github.com/globaltrotter/globaltrotter/internal/domain/models"
	"github.com/globaltrotter/globaltrotter/internal/testutil"
	"go.uber.org/zap"
)

var today = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

type env struct {
	h        *trips.Handler
	sm       *auth.SessionManager
	audit    *audit.Store
	fixtures *testutil.Fixtures
	owner    testutil.TestUser
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	sm, err := auth.NewSessionManager("test-session-key-for-testing-only-32+", "test-session", "", time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	sm.SetAdmins([]string{"admin@example.com"})

	svc := tripsvc.New(tripstore.New(db), userstore.New(db), tripsvc.Config{MinSections: 1}, logger)
	events := audit.New(db)
	h := trips.NewHandler(svc, sm, auditlog.New(events, logger, auditlog.Config{Trips: "db"}), uierrors.NewErrorLogger(logger), logger)
	h.Now = func() time.Time { return today }

	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fixtures.CreateUser(ctx, "traveler1", "t1@example.com")
	fixtures.CreateUser(ctx, "admin", "admin@example.com")

	return &env{
		h:        h,
		sm:       sm,
		audit:    events,
		fixtures: fixtures,
		owner:    testutil.TestUser{ID: "65f000000000000000000001", Username: "traveler1", Email: "t1@example.com"},
	}
}

func kyotoBody() map[string]any {
	return map[string]any{
		"destination":  "Kyoto",
		"start_date":   "2024-03-01",
		"end_date":     "2024-03-05",
		"total_budget": 9999,
		"sections": []map[string]any{
			{"name": "Temple", "budget": 20, "days_to_stay": 1, "date_range": "Day 1"},
		},
	}
}

func (e *env) create(t *testing.T, user testutil.TestUser, body any) string {
	t.Helper()
	rec := httptest.NewRecorder()
	e.h.HandleCreate(rec, testutil.WithUser(testutil.NewJSONRequest("POST", "/api/trips", body), user))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil || out.ID == "" {
		t.Fatalf("create response %s: %v", rec.Body.String(), err)
	}
	return out.ID
}

type listBody struct {
	Trips  []models.Trip  `json:"trips"`
	Counts map[string]int `json:"counts"`
}

func (e *env) list(t *testing.T, user testutil.TestUser, target string) listBody {
	t.Helper()
	rec := httptest.NewRecorder()
	e.h.HandleList(rec, testutil.NewAuthenticatedRequest("GET", target, user))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, body %s", rec.Code, rec.Body.String())
	}
	var out listBody
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	return out
}

func TestCreate_RejectsNonJSONBody(t *testing.T) {
	e := newEnv(t)
	raw, _ := json.Marshal(kyotoBody())

	for _, ct := range []string{"text/plain", "application/x-www-form-urlencoded", ""} {
		req := httptest.NewRequest("POST", "/api/trips", bytes.NewReader(raw))
		if ct != "" {
			req.Header.Set("Content-Type", ct)
		}
		rec := httptest.NewRecorder()
		e.h.HandleCreate(rec, testutil.WithUser(req, e.owner))
		if rec.Code != http.StatusUnsupportedMediaType {
			t.Errorf("Content-Type %q: status = %d, want 415", ct, rec.Code)
		}
	}

	if got := e.list(t, e.owner, "/api/trips"); len(got.Trips) != 0 {
		t.Errorf("trips = %d, want none stored", len(got.Trips))
	}
}

func TestCreateThenList(t *testing.T) {
	e := newEnv(t)
	id := e.create(t, e.owner, kyotoBody())

	got := e.list(t, e.owner, "/api/trips")
	if len(got.Trips) != 1 {
		t.Fatalf("trips = %d, want 1", len(got.Trips))
	}
	tr := got.Trips[0]
	if tr.ID.Hex() != id || tr.TotalBudget != 20 || tr.TotalDays != 5 || tr.UserEmail != "t1@example.com" {
		t.Errorf("trip = %+v", tr)
	}
	if got.Counts["completed"] != 1 {
		t.Errorf("counts = %v", got.Counts)
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	events, err := e.audit.Query(ctx, audit.QueryFilter{EventType: audit.EventTripCreated})
	if err != nil {
		t.Fatalf("audit query: %v", err)
	}
	if len(events) != 1 || events[0].Details["trip_id"] != id || events[0].Email != "t1@example.com" {
		t.Errorf("audit events = %+v", events)
	}
}

func TestCreate_Validation(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name string
		edit func(map[string]any)
	}{
		{"bad date", func(b map[string]any) { b["start_date"] = "March 1st" }},
		{"end before start", func(b map[string]any) { b["end_date"] = "2024-02-01" }},
		{"no sections", func(b map[string]any) { b["sections"] = []any{} }},
		{"missing destination", func(b map[string]any) { delete(b, "destination") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := kyotoBody()
			tt.edit(body)
			rec := httptest.NewRecorder()
			e.h.HandleCreate(rec, testutil.WithUser(testutil.NewJSONRequest("POST", "/api/trips", body), e.owner))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCreate_OwnerIsCaller(t *testing.T) {
	e := newEnv(t)
	body := kyotoBody()
	body["user_email"] = "admin@example.com"
	e.create(t, e.owner, body)

	if got := e.list(t, e.owner, "/api/trips"); len(got.Trips) != 1 {
		t.Errorf("non-admin could assign trip to someone else")
	}
}

func TestList_StatusSortAndQuery(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	day := func(s string) time.Time { tm, _ := time.Parse(time.DateOnly, s); return tm }
	e.fixtures.CreateTrip(ctx, "t1@example.com", "Oslo", day("2024-06-01"), day("2024-06-10"), today.Add(-3*time.Hour))
	e.fixtures.CreateTrip(ctx, "t1@example.com", "Bergen", day("2024-06-11"), day("2024-06-20"), today.Add(-2*time.Hour))
	e.fixtures.CreateTrip(ctx, "t1@example.com", "Tromso", day("2024-06-01"), day("2024-06-09"), today.Add(-1*time.Hour))

	if got := e.list(t, e.owner, "/api/trips?status=ongoing"); len(got.Trips) != 1 || got.Trips[0].Destination != "Oslo" {
		t.Errorf("ongoing = %+v", got.Trips)
	}
	if got := e.list(t, e.owner, "/api/trips?status=upcoming"); len(got.Trips) != 1 || got.Trips[0].Destination != "Bergen" {
		t.Errorf("upcoming = %+v", got.Trips)
	}
	if got := e.list(t, e.owner, "/api/trips?q=TROMS"); len(got.Trips) != 1 {
		t.Errorf("q=TROMS matched %d trips", len(got.Trips))
	}

	got := e.list(t, e.owner, "/api/trips?sort=destination&order=asc")
	if len(got.Trips) != 3 || got.Trips[0].Destination != "Bergen" || got.Trips[1].Destination != "Oslo" {
		t.Errorf("sorted = %v", got.Trips)
	}

	got = e.list(t, e.owner, "/api/trips")
	if got.Trips[0].Destination != "Tromso" {
		t.Errorf("default order should be newest first, got %s", got.Trips[0].Destination)
	}
}

func TestGetAndUpdate_OwnerOnly(t *testing.T) {
	e := newEnv(t)
	id := e.create(t, e.owner, kyotoBody())
	stranger := testutil.TestUser{ID: "65f000000000000000000009", Username: "other", Email: "other@example.com"}
	router := trips.Routes(e.h, e.sm)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, testutil.NewAuthenticatedRequest("GET", "/"+id, stranger))
	if rec.Code != http.StatusNotFound {
		t.Errorf("stranger GET status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, testutil.WithUser(testutil.NewJSONRequest("PATCH", "/"+id, map[string]any{"destination": "Osaka"}), stranger))
	if rec.Code != http.StatusNotFound {
		t.Errorf("stranger PATCH status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, testutil.NewAuthenticatedRequest("GET", "/"+id, e.owner))
	if rec.Code != http.StatusOK {
		t.Fatalf("owner GET status = %d", rec.Code)
	}

	admin := testutil.TestUser{ID: "65f000000000000000000002", Username: "admin", Email: "admin@example.com"}
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, testutil.NewAuthenticatedRequest("GET", "/"+id, admin))
	if rec.Code != http.StatusOK {
		t.Errorf("admin GET status = %d", rec.Code)
	}
}

func TestUpdate_ReplacesSections(t *testing.T) {
	e := newEnv(t)
	body := kyotoBody()
	body["sections"] = []map[string]any{
		{"name": "A", "budget": 20, "days_to_stay": 1, "date_range": "Day 1"},
		{"name": "B", "budget": 30, "days_to_stay": 2, "date_range": "Day 2-3"},
		{"name": "C", "budget": 15, "days_to_stay": 2, "date_range": "Day 4-5"},
	}
	id := e.create(t, e.owner, body)

	rec := httptest.NewRecorder()
	req := testutil.NewJSONRequest("PATCH", "/api/trips/"+id, map[string]any{
		"sections": []map[string]any{{"name": "New", "budget": 10, "days_to_stay": 1, "date_range": "Day 1"}},
	})
	req = testutil.WithChiURLParam(testutil.WithUser(req, e.owner), "id", id)
	e.h.HandleUpdate(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body.String())
	}

	got := e.list(t, e.owner, "/api/trips")
	if len(got.Trips) != 1 || len(got.Trips[0].Sections) != 1 || got.Trips[0].TotalBudget != 10 {
		t.Errorf("after update = %+v", got.Trips)
	}
}

func TestAdminRoutes(t *testing.T) {
	e := newEnv(t)
	for i := 0; i < 3; i++ {
		e.create(t, e.owner, kyotoBody())
	}
	router := trips.AdminRoutes(e.h, e.sm)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, testutil.NewAuthenticatedRequest("GET", "/?limit=2", e.owner))
	if rec.Code != http.StatusForbidden {
		t.Errorf("non-admin status = %d, want 403", rec.Code)
	}

	admin := testutil.TestUser{ID: "65f000000000000000000002", Username: "admin", Email: "admin@example.com"}
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, testutil.NewAuthenticatedRequest("GET", "/?limit=2", admin))
	if rec.Code != http.StatusOK {
		t.Fatalf("admin status = %d", rec.Code)
	}
	var page tripsvc.TripPage
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 3 || len(page.Trips) != 2 || !page.Range.HasNext {
		t.Errorf("page = total %d, %d trips, range %+v", page.Total, len(page.Trips), page.Range)
	}
}

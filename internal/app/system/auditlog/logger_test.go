package auditlog_test

import (
	"net/http/httptest"
	"testing"

	"github.com/globaltrotter/globaltrotter/internal/app/store/audit"
	"github.com/globaltrotter/globaltrotter/internal/app/system/auditlog"
	"github.com/globaltrotter/globaltrotter/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func TestLogger_NilLogger(t *testing.T) {
	// nil logger should be a no-op (not panic)
	var logger *auditlog.Logger
	ctx, cancel := testutil.TestContext()
	defer cancel()
	req := httptest.NewRequest("GET", "/", nil)

	logger.Log(ctx, audit.Event{EventType: "test"})
	logger.LoginSuccess(ctx, req, primitive.NewObjectID().Hex(), "ana@example.com", "email")
	logger.Logout(ctx, req, primitive.NewObjectID().Hex())
	logger.TripCreated(ctx, req, "", "ana@example.com", "t1", "ana@example.com")
}

func TestLogger_Destinations(t *testing.T) {
	tests := []struct {
		setting string
		wantDB  int
	}{
		{"off", 0},
		{"log", 0},
		{"db", 1},
		{"all", 1},
		{"", 1}, // unset defaults to all
	}
	for _, tc := range tests {
		t.Run(tc.setting, func(t *testing.T) {
			db := testutil.SetupTestDB(t)
			store := audit.New(db)
			ctx, cancel := testutil.TestContext()
			defer cancel()

			userID := primitive.NewObjectID()
			logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Auth: tc.setting, Trips: tc.setting})
			logger.Log(ctx, audit.Event{
				Category:  audit.CategoryAuth,
				EventType: audit.EventLoginSuccess,
				UserID:    &userID,
				Success:   true,
			})

			events, err := store.GetByUser(ctx, userID, 10)
			if err != nil {
				t.Fatalf("GetByUser failed: %v", err)
			}
			if len(events) != tc.wantDB {
				t.Errorf("expected %d stored events, got %d", tc.wantDB, len(events))
			}
		})
	}
}

func TestLogger_CategoriesAreIndependent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Auth: "off", Trips: "db"})
	req := httptest.NewRequest("POST", "/api/trips", nil)

	logger.LoginFailed(ctx, req, "ana@example.com", "email", "invalid credentials")
	logger.TripCreated(ctx, req, primitive.NewObjectID().Hex(), "ana@example.com", "t1", "ana@example.com")

	events, err := store.GetRecent(ctx, 10)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(events) != 1 || events[0].EventType != audit.EventTripCreated {
		t.Fatalf("expected only the trip event, got %+v", events)
	}
	if events[0].Details["trip_id"] != "t1" {
		t.Errorf("trip_id detail = %q", events[0].Details["trip_id"])
	}
}

func TestLogger_LoginEvents(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Auth: "db"})
	req := httptest.NewRequest("POST", "/api/auth/login", nil)
	req.RemoteAddr = "203.0.113.7:5555"
	req.Header.Set("User-Agent", "TestBrowser/1.0")

	userID := primitive.NewObjectID()
	logger.LoginSuccess(ctx, req, userID.Hex(), "ana@example.com", "email")
	logger.LoginFailed(ctx, req, "nobody@example.com", "email", "invalid credentials")
	logger.LoginRateLimited(ctx, req, "nobody@example.com")

	events, err := store.GetByUser(ctx, userID, 10)
	if err != nil {
		t.Fatalf("GetByUser failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event for user, got %d", len(events))
	}
	e := events[0]
	if e.EventType != audit.EventLoginSuccess || !e.Success {
		t.Errorf("unexpected event %+v", e)
	}
	if e.IP != "203.0.113.7" {
		t.Errorf("IP = %q, want 203.0.113.7", e.IP)
	}
	if e.UserAgent != "TestBrowser/1.0" {
		t.Errorf("UserAgent = %q", e.UserAgent)
	}
	if e.Details["auth_method"] != "email" {
		t.Errorf("auth_method = %q", e.Details["auth_method"])
	}

	failed, err := store.Query(ctx, audit.QueryFilter{Email: "nobody@example.com"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(failed) != 2 {
		t.Fatalf("expected 2 failure events, got %d", len(failed))
	}
	for _, f := range failed {
		if f.Success || f.FailureReason == "" {
			t.Errorf("failure event should carry a reason: %+v", f)
		}
	}
}

func TestLogger_BadUserIDIsOmitted(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Auth: "db"})
	logger.Logout(ctx, httptest.NewRequest("POST", "/", nil), "not-an-object-id")

	events, err := store.GetRecent(ctx, 10)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(events) != 1 || events[0].UserID != nil {
		t.Fatalf("expected one event without user_id, got %+v", events)
	}
}

func TestValid(t *testing.T) {
	for _, v := range []string{"all", "db", "log", "off"} {
		if !auditlog.Valid(v) {
			t.Errorf("Valid(%q) = false", v)
		}
	}
	if auditlog.Valid("verbose") {
		t.Error("Valid(verbose) = true")
	}
}

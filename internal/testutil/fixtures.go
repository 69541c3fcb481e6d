package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/globaltrotter/globaltrotter/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser inserts a verified email-provider user.
func (f *Fixtures) CreateUser(ctx context.Context, username, email string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	u := models.User{
		ID:           primitive.NewObjectID(),
		Username:     username,
		Email:        email,
		AuthProvider: models.AuthProviderEmail,
		PasswordHash: "$2a$10$not-a-real-hash-used-only-in-fixtures",
		IsVerified:   true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateTrip inserts a single-section trip for userEmail spanning
// [start, end]. createdAt orders list results.
func (f *Fixtures) CreateTrip(ctx context.Context, userEmail, destination string, start, end, createdAt time.Time) models.Trip {
	f.t.Helper()

	tr := models.Trip{
		ID:          primitive.NewObjectID(),
		Destination: destination,
		StartDate:   models.DateOnly(start),
		EndDate:     models.DateOnly(end),
		TotalDays:   models.SpanDays(start, end),
		TotalBudget: 100,
		UserEmail:   userEmail,
		Sections: []models.Section{
			{Name: "Stay", Budget: 100, DaysToStay: models.SpanDays(start, end), DateRange: "Day 1"},
		},
		CreatedAt: createdAt.UTC(),
		UpdatedAt: createdAt.UTC(),
	}
	if _, err := f.db.Collection("trips").InsertOne(ctx, tr); err != nil {
		f.t.Fatalf("failed to create test trip: %v", err)
	}
	return tr
}

// internal/app/store/trips/tripstore.go
package tripstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/globaltrotter/globaltrotter/internal/app/system/normalize"
	"github.com/globaltrotter/globaltrotter/internal/domain/apperr"
	"github.com/globaltrotter/globaltrotter/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("trips")}
}

// ErrNotFound matches apperr.ErrNotFound.
var ErrNotFound = fmt.Errorf("tripstore: trip %w", apperr.ErrNotFound)

// newestFirst is the listing order everywhere: created_at desc, _id desc as
// a tiebreak so equal timestamps still page deterministically.
var newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}

// Create inserts t with a fresh ID. CreatedAt is kept when the caller set it.
func (s *Store) Create(ctx context.Context, t models.Trip) (models.Trip, error) {
	t.ID = primitive.NewObjectID()
	t.UserEmail = normalize.Email(t.UserEmail)
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	if t.Sections == nil {
		t.Sections = []models.Section{}
	}

	if _, err := s.c.InsertOne(ctx, t); err != nil {
		return models.Trip{}, fmt.Errorf("insert trip: %w", err)
	}
	return t, nil
}

// GetByID loads one trip.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Trip, error) {
	var t models.Trip
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find trip: %w", err)
	}
	return &t, nil
}

// Replace overwrites the stored document for t.ID (last write wins).
// CreatedAt is preserved from the stored document.
func (s *Store) Replace(ctx context.Context, t models.Trip) error {
	t.UserEmail = normalize.Email(t.UserEmail)
	if t.Sections == nil {
		t.Sections = []models.Section{}
	}
	update := bson.M{"$set": bson.M{
		"destination":  t.Destination,
		"start_date":   t.StartDate,
		"end_date":     t.EndDate,
		"total_days":   t.TotalDays,
		"total_budget": t.TotalBudget,
		"user_email":   t.UserEmail,
		"sections":     t.Sections,
		"updated_at":   t.UpdatedAt,
	}}
	if t.UserEmail == "" {
		set := update["$set"].(bson.M)
		delete(set, "user_email")
		update["$unset"] = bson.M{"user_email": ""}
	}

	res, err := s.c.UpdateOne(ctx, bson.M{"_id": t.ID}, update)
	if err != nil {
		return fmt.Errorf("update trip: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByUserEmail returns every trip owned by email, newest first.
func (s *Store) ListByUserEmail(ctx context.Context, email string) ([]models.Trip, error) {
	return s.find(ctx, bson.M{"user_email": normalize.Email(email)}, options.Find().SetSort(newestFirst))
}

// ListAll returns up to limit trips after skipping skip, newest first.
func (s *Store) ListAll(ctx context.Context, skip, limit int64) ([]models.Trip, error) {
	opts := options.Find().SetSort(newestFirst).SetSkip(skip).SetLimit(limit)
	return s.find(ctx, bson.M{}, opts)
}

// All returns every trip. Used by analytics.
func (s *Store) All(ctx context.Context) ([]models.Trip, error) {
	return s.find(ctx, bson.M{}, options.Find().SetSort(newestFirst))
}

// Count returns the total number of trips.
func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count trips: %w", err)
	}
	return n, nil
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Trip, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find trips: %w", err)
	}
	defer cur.Close(ctx)

	out := []models.Trip{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode trips: %w", err)
	}
	return out, nil
}

package userstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
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
	return &Store{c: db.Collection("users")}
}

var (
	// ErrDuplicate is returned when email, username or external id is taken.
	// It matches apperr.ErrDuplicateIdentity.
	ErrDuplicate = fmt.Errorf("userstore: %w", apperr.ErrDuplicateIdentity)

	// ErrNotFound matches apperr.ErrNotFound.
	ErrNotFound = fmt.Errorf("userstore: user %w", apperr.ErrNotFound)

	errBadProvider = errors.New(`auth_provider must be "email"|"external"`)
)

// Create inserts a new user after normalizing email and username. A preset
// ID is kept so callers can derive tokens from it before the insert.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	u.Email = normalize.Email(u.Email)
	u.Username = normalize.Username(u.Username)
	if u.AuthProvider == "" {
		u.AuthProvider = models.AuthProviderEmail
	}
	if !models.IsValidAuthProvider(u.AuthProvider) {
		return models.User{}, errBadProvider
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicate
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetByEmail looks up a user by case-insensitive email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": normalize.Email(email)})
}

// GetByUsername looks up a user by case-insensitive username.
func (s *Store) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"username": normalize.Username(username)})
}

// GetByExternalID looks up a user by identity-provider subject.
func (s *Store) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"external_id": externalID})
}

// ExistsByEmail reports whether an account uses email.
func (s *Store) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"email": normalize.Email(email)}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	return n > 0, nil
}

// SetRefreshToken stores the current refresh token. An empty token clears it.
func (s *Store) SetRefreshToken(ctx context.Context, id primitive.ObjectID, token string) error {
	update := bson.M{"$set": bson.M{"refresh_token": token, "updated_at": time.Now().UTC()}}
	if token == "" {
		update = bson.M{
			"$unset": bson.M{"refresh_token": ""},
			"$set":   bson.M{"updated_at": time.Now().UTC()},
		}
	}
	return s.updateByID(ctx, id, update)
}

// SetVerifyToken replaces the pending verification token.
func (s *Store) SetVerifyToken(ctx context.Context, id primitive.ObjectID, token string, expiry time.Time) error {
	return s.updateByID(ctx, id, bson.M{"$set": bson.M{
		"verify_token":        token,
		"verify_token_expiry": expiry.UTC(),
		"updated_at":          time.Now().UTC(),
	}})
}

// SetExternalID links an identity-provider subject to an existing account.
func (s *Store) SetExternalID(ctx context.Context, id primitive.ObjectID, externalID string) error {
	err := s.updateByID(ctx, id, bson.M{"$set": bson.M{
		"external_id": externalID,
		"updated_at":  time.Now().UTC(),
	}})
	if err != nil && wafflemongo.IsDup(err) {
		return ErrDuplicate
	}
	return err
}

func (s *Store) updateByID(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return err
		}
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ConsumeVerifyToken atomically marks the holder of an unexpired token as
// verified and clears the token, so a token can succeed at most once.
// Returns ErrNotFound when no unexpired token matches.
func (s *Store) ConsumeVerifyToken(ctx context.Context, token string, now time.Time) (*models.User, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	filter := bson.M{
		"verify_token":        token,
		"verify_token_expiry": bson.M{"$gt": now.UTC()},
	}
	update := bson.M{
		"$set":   bson.M{"is_verified": true, "updated_at": now.UTC()},
		"$unset": bson.M{"verify_token": "", "verify_token_expiry": ""},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var u models.User
	if err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("consume verify token: %w", err)
	}
	return &u, nil
}

// ClearExpiredVerifyTokens unsets verification tokens that expired before
// cutoff. The accounts stay unverified; ResendVerification issues a new one.
func (s *Store) ClearExpiredVerifyTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"verify_token_expiry": bson.M{"$lt": cutoff.UTC()}},
		bson.M{"$unset": bson.M{"verify_token": "", "verify_token_expiry": ""}},
	)
	if err != nil {
		return 0, fmt.Errorf("clear verify tokens: %w", err)
	}
	return res.ModifiedCount, nil
}

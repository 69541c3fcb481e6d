// internal/app/store/oauthstate/store.go
package oauthstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Flow says what the Google callback should do with the verified identity.
type Flow string

const (
	FlowLogin    Flow = "login"
	FlowRegister Flow = "register"
)

// State is a one-time OAuth2 state token stored for CSRF protection.
type State struct {
	State     string    `bson:"state"`
	Flow      Flow      `bson:"flow"`
	Username  string    `bson:"username,omitempty"` // requested username for FlowRegister
	ReturnURL string    `bson:"return_url,omitempty"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
}

// Store manages OAuth2 state tokens in MongoDB. Indexes (unique state, TTL on
// expires_at) are created by system/indexes.
type Store struct {
	c   *mongo.Collection
	now func() time.Time
}

// New creates a new OAuth state Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("oauth_states"), now: time.Now}
}

// Save stores st. CreatedAt is set here.
func (s *Store) Save(ctx context.Context, st State) error {
	if st.State == "" {
		return errors.New("oauthstate: empty state")
	}
	if st.Flow == "" {
		st.Flow = FlowLogin
	}
	st.ExpiresAt = st.ExpiresAt.UTC()
	st.CreatedAt = s.now().UTC()
	if _, err := s.c.InsertOne(ctx, st); err != nil {
		return fmt.Errorf("save oauth state: %w", err)
	}
	return nil
}

// Consume deletes and returns an unexpired state token. valid is false when
// the token is unknown, already used, or expired.
func (s *Store) Consume(ctx context.Context, state string) (st State, valid bool, err error) {
	if state == "" {
		return State{}, false, nil
	}
	err = s.c.FindOneAndDelete(ctx, bson.M{
		"state":      state,
		"expires_at": bson.M{"$gt": s.now().UTC()},
	}).Decode(&st)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("consume oauth state: %w", err)
	}
	return st, true, nil
}

// CleanupExpired removes expired state tokens.
// This is a backup for when TTL index cleanup is delayed.
func (s *Store) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := s.c.DeleteMany(ctx, bson.M{
		"expires_at": bson.M{"$lt": s.now().UTC()},
	})
	if err != nil {
		return 0, fmt.Errorf("cleanup oauth states: %w", err)
	}
	return result.DeletedCount, nil
}

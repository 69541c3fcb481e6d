package indexes_test

import (
	"context"
	"testing"

	"github.com/globaltrotter/globaltrotter/internal/app/system/indexes"
	"github.com/globaltrotter/globaltrotter/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func indexNames(t *testing.T, ctx context.Context, db *mongo.Database, coll string) map[string]bool {
	t.Helper()
	cur, err := db.Collection(coll).Indexes().List(ctx)
	if err != nil {
		t.Fatalf("List indexes failed: %v", err)
	}
	defer cur.Close(ctx)

	names := make(map[string]bool)
	for cur.Next(ctx) {
		var idx bson.M
		if err := cur.Decode(&idx); err != nil {
			continue
		}
		if name, ok := idx["name"].(string); ok {
			names[name] = true
		}
	}
	return names
}

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("First EnsureAll failed: %v", err)
	}
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("Second EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_CreatesIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	tests := []struct {
		coll  string
		names []string
	}{
		{"users", []string{"uniq_users_email", "uniq_users_username", "uniq_users_external_id", "idx_users_verify_token"}},
		{"trips", []string{"idx_trips_user_created", "idx_trips_created"}},
		{"oauth_states", []string{"uniq_oauth_state", "idx_oauth_ttl"}},
		{"audit_events", []string{"idx_audit_ts_desc", "idx_audit_user_ts", "idx_audit_cat_type_ts", "idx_audit_email_ts"}},
	}
	for _, tt := range tests {
		t.Run(tt.coll, func(t *testing.T) {
			got := indexNames(t, ctx, db, tt.coll)
			for _, name := range tt.names {
				if !got[name] {
					t.Errorf("expected index %q on %s", name, tt.coll)
				}
			}
		})
	}
}

func TestEnsureAll_RenamesIndexWithSameKeys(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := db.Collection("users").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("legacy_email"),
	})
	if err != nil {
		t.Fatalf("create legacy index: %v", err)
	}

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	got := indexNames(t, ctx, db, "users")
	if got["legacy_email"] {
		t.Error("legacy index should have been replaced")
	}
	if !got["uniq_users_email"] {
		t.Error("expected uniq_users_email")
	}
}

func TestEnsureAll_UniqueEmailEnforced(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	users := db.Collection("users")
	if _, err := users.InsertOne(ctx, bson.M{"email": "a@example.com", "username": "a"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := users.InsertOne(ctx, bson.M{"email": "a@example.com", "username": "b"}); err == nil {
		t.Error("expected duplicate key error on users.email")
	}
}

func TestEnsureAll_ExternalIDSparse(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	users := db.Collection("users")
	// Two accounts without external_id must coexist.
	if _, err := users.InsertOne(ctx, bson.M{"email": "a@example.com", "username": "a"}); err != nil {
		t.Fatalf("insert a: %v", err)
	}
	if _, err := users.InsertOne(ctx, bson.M{"email": "b@example.com", "username": "b"}); err != nil {
		t.Fatalf("insert b: %v", err)
	}
	if _, err := users.InsertOne(ctx, bson.M{"email": "c@example.com", "username": "c", "external_id": "g-1"}); err != nil {
		t.Fatalf("insert c: %v", err)
	}
	if _, err := users.InsertOne(ctx, bson.M{"email": "d@example.com", "username": "d", "external_id": "g-1"}); err == nil {
		t.Error("expected duplicate key error on users.external_id")
	}
}

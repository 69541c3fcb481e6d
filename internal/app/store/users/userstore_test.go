package userstore_test

import (
	"errors"
	"testing"
	"time"

	userstore "github.com/globaltrotter/globaltrotter/internal/app/store/users"
	"github.com/globaltrotter/globaltrotter/internal/app/system/indexes"
	"github.com/globaltrotter/globaltrotter/internal/domain/apperr"
	"github.com/globaltrotter/globaltrotter/internal/domain/models"
	"github.com/globaltrotter/globaltrotter/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func setup(t *testing.T) (*mongo.Database, *userstore.Store) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	return db, userstore.New(db)
}

func TestStore_Create_Normalizes(t *testing.T) {
	_, store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.User{
		Username:     "  Ana_Trips ",
		Email:        "Ana@Example.COM",
		PasswordHash: "hash",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID == primitive.NilObjectID {
		t.Error("expected ID to be assigned")
	}
	if created.Email != "ana@example.com" {
		t.Errorf("Email = %q, want lowercased", created.Email)
	}
	if created.Username != "ana_trips" {
		t.Errorf("Username = %q, want ana_trips", created.Username)
	}
	if created.AuthProvider != models.AuthProviderEmail {
		t.Errorf("AuthProvider = %q, want email", created.AuthProvider)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestStore_Create_KeepsPresetIDAndRefreshToken(t *testing.T) {
	_, store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	id := primitive.NewObjectID()
	created, err := store.Create(ctx, models.User{
		ID:           id,
		Username:     "preset",
		Email:        "preset@example.com",
		PasswordHash: "hash",
		RefreshToken: "refresh-1",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID != id {
		t.Errorf("ID = %s, want %s", created.ID.Hex(), id.Hex())
	}

	got, err := store.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.RefreshToken != "refresh-1" {
		t.Errorf("RefreshToken = %q, want refresh-1", got.RefreshToken)
	}
}

func TestStore_Create_BadProvider(t *testing.T) {
	_, store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.Create(ctx, models.User{Username: "x", Email: "x@example.com", AuthProvider: "github"})
	if err == nil {
		t.Fatal("expected error for unknown auth provider")
	}
}

func TestStore_Create_DuplicateEmailCaseInsensitive(t *testing.T) {
	_, store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, models.User{Username: "first", Email: "dup@example.com"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	_, err := store.Create(ctx, models.User{Username: "second", Email: "DUP@example.com"})
	if !errors.Is(err, userstore.ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
	if !errors.Is(err, apperr.ErrDuplicateIdentity) {
		t.Error("ErrDuplicate should match apperr.ErrDuplicateIdentity")
	}
}

func TestStore_Create_DuplicateUsername(t *testing.T) {
	_, store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, models.User{Username: "same", Email: "a@example.com"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	_, err := store.Create(ctx, models.User{Username: "SAME", Email: "b@example.com"})
	if !errors.Is(err, userstore.ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
}

func TestStore_Lookups(t *testing.T) {
	_, store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ext := "google-123"
	u, err := store.Create(ctx, models.User{
		Username:     "globe",
		Email:        "globe@example.com",
		AuthProvider: models.AuthProviderExternal,
		ExternalID:   &ext,
		IsVerified:   true,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	tests := []struct {
		name string
		get  func() (*models.User, error)
	}{
		{"by id", func() (*models.User, error) { return store.GetByID(ctx, u.ID) }},
		{"by email", func() (*models.User, error) { return store.GetByEmail(ctx, "GLOBE@example.com") }},
		{"by username", func() (*models.User, error) { return store.GetByUsername(ctx, "Globe") }},
		{"by external id", func() (*models.User, error) { return store.GetByExternalID(ctx, ext) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.get()
			if err != nil {
				t.Fatalf("lookup failed: %v", err)
			}
			if got.ID != u.ID {
				t.Errorf("ID = %s, want %s", got.ID.Hex(), u.ID.Hex())
			}
		})
	}

	if _, err := store.GetByEmail(ctx, "missing@example.com"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing email err = %v, want ErrNotFound", err)
	}

	ok, err := store.ExistsByEmail(ctx, "Globe@Example.com")
	if err != nil || !ok {
		t.Errorf("ExistsByEmail = %v, %v; want true", ok, err)
	}
	ok, err = store.ExistsByEmail(ctx, "nobody@example.com")
	if err != nil || ok {
		t.Errorf("ExistsByEmail(nobody) = %v, %v; want false", ok, err)
	}
}

func TestStore_SetRefreshToken(t *testing.T) {
	db, store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, err := store.Create(ctx, models.User{Username: "r", Email: "r@example.com"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.SetRefreshToken(ctx, u.ID, "tok-1"); err != nil {
		t.Fatalf("SetRefreshToken failed: %v", err)
	}
	got, _ := store.GetByID(ctx, u.ID)
	if got.RefreshToken != "tok-1" {
		t.Errorf("RefreshToken = %q, want tok-1", got.RefreshToken)
	}

	if err := store.SetRefreshToken(ctx, u.ID, ""); err != nil {
		t.Fatalf("clear refresh token failed: %v", err)
	}
	var raw bson.M
	if err := db.Collection("users").FindOne(ctx, bson.M{"_id": u.ID}).Decode(&raw); err != nil {
		t.Fatalf("raw find: %v", err)
	}
	if _, ok := raw["refresh_token"]; ok {
		t.Error("refresh_token should be unset")
	}

	if err := store.SetRefreshToken(ctx, primitive.NewObjectID(), "x"); !errors.Is(err, userstore.ErrNotFound) {
		t.Errorf("unknown id err = %v, want ErrNotFound", err)
	}
}

func TestStore_ConsumeVerifyToken_SingleUse(t *testing.T) {
	_, store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Now().UTC()
	exp := now.Add(time.Hour)
	u, err := store.Create(ctx, models.User{
		Username:          "v",
		Email:             "v@example.com",
		VerifyToken:       "verify-abc",
		VerifyTokenExpiry: &exp,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.ConsumeVerifyToken(ctx, "verify-abc", now)
	if err != nil {
		t.Fatalf("ConsumeVerifyToken failed: %v", err)
	}
	if got.ID != u.ID || !got.IsVerified {
		t.Errorf("got %+v, want verified user %s", got, u.ID.Hex())
	}
	if got.VerifyToken != "" || got.VerifyTokenExpiry != nil {
		t.Error("token fields should be cleared")
	}

	if _, err := store.ConsumeVerifyToken(ctx, "verify-abc", now); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second consume err = %v, want ErrNotFound", err)
	}
}

func TestStore_ConsumeVerifyToken_Expired(t *testing.T) {
	_, store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Now().UTC()
	exp := now.Add(-time.Minute)
	if _, err := store.Create(ctx, models.User{
		Username: "e", Email: "e@example.com", VerifyToken: "old", VerifyTokenExpiry: &exp,
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := store.ConsumeVerifyToken(ctx, "old", now); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := store.ConsumeVerifyToken(ctx, "", now); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("empty token err = %v, want ErrNotFound", err)
	}
}

func TestStore_SetVerifyTokenAndClearExpired(t *testing.T) {
	_, store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Now().UTC()
	stale, _ := store.Create(ctx, models.User{Username: "stale", Email: "stale@example.com"})
	fresh, _ := store.Create(ctx, models.User{Username: "fresh", Email: "fresh@example.com"})

	if err := store.SetVerifyToken(ctx, stale.ID, "t1", now.Add(-time.Hour)); err != nil {
		t.Fatalf("SetVerifyToken failed: %v", err)
	}
	if err := store.SetVerifyToken(ctx, fresh.ID, "t2", now.Add(time.Hour)); err != nil {
		t.Fatalf("SetVerifyToken failed: %v", err)
	}

	n, err := store.ClearExpiredVerifyTokens(ctx, now)
	if err != nil {
		t.Fatalf("ClearExpiredVerifyTokens failed: %v", err)
	}
	if n != 1 {
		t.Errorf("cleared %d, want 1", n)
	}
	got, _ := store.GetByID(ctx, fresh.ID)
	if got.VerifyToken != "t2" {
		t.Errorf("fresh token = %q, want t2", got.VerifyToken)
	}
}

func TestStore_SetExternalID_Duplicate(t *testing.T) {
	_, store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ext := "g-1"
	if _, err := store.Create(ctx, models.User{Username: "a", Email: "a@example.com", AuthProvider: models.AuthProviderExternal, ExternalID: &ext}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	b, err := store.Create(ctx, models.User{Username: "b", Email: "b@example.com"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.SetExternalID(ctx, b.ID, ext); !errors.Is(err, userstore.ErrDuplicate) {
		t.Errorf("err = %v, want ErrDuplicate", err)
	}
	if err := store.SetExternalID(ctx, b.ID, "g-2"); err != nil {
		t.Errorf("SetExternalID failed: %v", err)
	}
}

func TestFetcher_FetchUser(t *testing.T) {
	db, store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, err := store.Create(ctx, models.User{Username: "f", Email: "f@example.com"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	f := userstore.NewFetcher(db)
	got := f.FetchUser(ctx, u.ID.Hex())
	if got == nil {
		t.Fatal("expected user")
	}
	if got.Username != "f" || got.Email != "f@example.com" {
		t.Errorf("got %+v", got)
	}
	if f.FetchUser(ctx, "not-an-id") != nil {
		t.Error("invalid id should return nil")
	}
	if f.FetchUser(ctx, primitive.NewObjectID().Hex()) != nil {
		t.Error("unknown id should return nil")
	}
}

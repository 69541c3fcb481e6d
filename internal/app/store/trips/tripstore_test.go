package tripstore_test

import (
	"errors"
	"testing"
	"time"

	tripstore "github.com/globaltrotter/globaltrotter/internal/app/store/trips"
	"github.com/globaltrotter/globaltrotter/internal/domain/apperr"
	"github.com/globaltrotter/globaltrotter/internal/domain/models"
	"github.com/globaltrotter/globaltrotter/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestStore_CreateAndGet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := tripstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.Trip{
		Destination: "Lisbon",
		StartDate:   day("2024-06-01"),
		EndDate:     day("2024-06-03"),
		TotalDays:   3,
		TotalBudget: 65,
		UserEmail:   "Ana@Example.com",
		Sections: []models.Section{
			{Name: "Alfama", Budget: 20, DaysToStay: 1, DateRange: "Day 1"},
			{Name: "Belém", Budget: 30, DaysToStay: 1, DateRange: "Day 2"},
			{Name: "Sintra", Budget: 15, DaysToStay: 1, DateRange: "Day 3", IsEditable: true},
		},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID == primitive.NilObjectID {
		t.Fatal("expected ID")
	}
	if created.UserEmail != "ana@example.com" {
		t.Errorf("UserEmail = %q, want lowercased", created.UserEmail)
	}

	got, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Destination != "Lisbon" || len(got.Sections) != 3 {
		t.Errorf("got %+v", got)
	}
	if got.Sections[1].Name != "Belém" || !got.Sections[2].IsEditable {
		t.Error("section order or fields not preserved")
	}
	if !got.StartDate.Equal(day("2024-06-01")) {
		t.Errorf("StartDate = %v", got.StartDate)
	}
}

func TestStore_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := tripstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.GetByID(ctx, primitive.NewObjectID())
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStore_Replace(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := tripstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tr := fx.CreateTrip(ctx, "ana@example.com", "Porto", day("2024-06-01"), day("2024-06-02"), created)

	tr.Destination = "Porto & Douro"
	tr.Sections = []models.Section{{Name: "Douro", Budget: 40, DaysToStay: 2, DateRange: "Day 1-2"}}
	tr.TotalBudget = 40
	tr.UpdatedAt = time.Now().UTC()
	if err := store.Replace(ctx, tr); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	got, err := store.GetByID(ctx, tr.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Destination != "Porto & Douro" {
		t.Errorf("Destination = %q", got.Destination)
	}
	if len(got.Sections) != 1 || got.Sections[0].Name != "Douro" {
		t.Errorf("Sections = %+v, want replaced wholesale", got.Sections)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt changed: %v", got.CreatedAt)
	}

	tr.ID = primitive.NewObjectID()
	if err := store.Replace(ctx, tr); !errors.Is(err, tripstore.ErrNotFound) {
		t.Errorf("unknown id err = %v, want ErrNotFound", err)
	}
}

func TestStore_ListByUserEmail_NewestFirst(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := tripstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fx.CreateTrip(ctx, "ana@example.com", "Oldest", day("2024-06-01"), day("2024-06-02"), base)
	fx.CreateTrip(ctx, "ana@example.com", "Newest", day("2024-06-01"), day("2024-06-02"), base.Add(2*time.Hour))
	fx.CreateTrip(ctx, "ana@example.com", "Middle", day("2024-06-01"), day("2024-06-02"), base.Add(time.Hour))
	fx.CreateTrip(ctx, "bob@example.com", "Other", day("2024-06-01"), day("2024-06-02"), base)

	got, err := store.ListByUserEmail(ctx, "ANA@example.com")
	if err != nil {
		t.Fatalf("ListByUserEmail failed: %v", err)
	}
	want := []string{"Newest", "Middle", "Oldest"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Destination != w {
			t.Errorf("[%d] = %q, want %q", i, got[i].Destination, w)
		}
	}

	none, err := store.ListByUserEmail(ctx, "nobody@example.com")
	if err != nil {
		t.Fatalf("ListByUserEmail failed: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", none)
	}
}

func TestStore_ListAllAndCount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := tripstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, d := range []string{"A", "B", "C", "D", "E"} {
		fx.CreateTrip(ctx, "ana@example.com", d, day("2024-06-01"), day("2024-06-02"), base.Add(time.Duration(i)*time.Hour))
	}

	n, err := store.Count(ctx)
	if err != nil || n != 5 {
		t.Fatalf("Count = %d, %v; want 5", n, err)
	}

	page, err := store.ListAll(ctx, 1, 2)
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(page) != 2 || page[0].Destination != "D" || page[1].Destination != "C" {
		t.Errorf("page = %v", destinations(page))
	}

	all, err := store.All(ctx)
	if err != nil || len(all) != 5 {
		t.Fatalf("All = %d, %v", len(all), err)
	}
}

func destinations(ts []models.Trip) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Destination
	}
	return out
}

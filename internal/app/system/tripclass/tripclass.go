// Package tripclass buckets trips by where "now" falls relative to their
// date range, and provides the sorting, filtering and summary helpers used
// by the trip history views.
//
// Dates are compared at day granularity in UTC, and both ends of a trip are
// inclusive: a trip is ongoing on its start day and on its end day.
package tripclass

import (
	"sort"
	"strings"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/globaltrotter/globaltrotter/internal/domain/models"
)

// Status is a trip's position relative to now.
type Status string

const (
	Upcoming  Status = "upcoming"
	Ongoing   Status = "ongoing"
	Completed Status = "completed"
)

// ParseStatus maps a query value to a Status.
func ParseStatus(s string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case Upcoming:
		return Upcoming, true
	case Ongoing:
		return Ongoing, true
	case Completed:
		return Completed, true
	}
	return "", false
}

// StatusOf classifies a single trip.
func StatusOf(t models.Trip, now time.Time) Status {
	day := models.DateOnly(now)
	switch {
	case day.Before(models.DateOnly(t.StartDate)):
		return Upcoming
	case day.After(models.DateOnly(t.EndDate)):
		return Completed
	default:
		return Ongoing
	}
}

// Buckets are the three disjoint groups produced by Classify. Each keeps the
// input order.
type Buckets struct {
	Ongoing   []models.Trip `json:"ongoing"`
	Upcoming  []models.Trip `json:"upcoming"`
	Completed []models.Trip `json:"completed"`
}

// Of returns the bucket for s.
func (b Buckets) Of(s Status) []models.Trip {
	switch s {
	case Ongoing:
		return b.Ongoing
	case Upcoming:
		return b.Upcoming
	default:
		return b.Completed
	}
}

// Classify splits trips into ongoing, upcoming and completed.
func Classify(trips []models.Trip, now time.Time) Buckets {
	b := Buckets{
		Ongoing:   []models.Trip{},
		Upcoming:  []models.Trip{},
		Completed: []models.Trip{},
	}
	for _, t := range trips {
		switch StatusOf(t, now) {
		case Ongoing:
			b.Ongoing = append(b.Ongoing, t)
		case Upcoming:
			b.Upcoming = append(b.Upcoming, t)
		default:
			b.Completed = append(b.Completed, t)
		}
	}
	return b
}

// SortKey selects the field SortBy orders on.
type SortKey string

const (
	ByDate        SortKey = "date"
	ByDestination SortKey = "destination"
	ByBudget      SortKey = "budget"
	ByDuration    SortKey = "duration"
)

// ParseSortKey maps a query value to a SortKey; unknown values yield ByDate.
func ParseSortKey(s string) SortKey {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case ByDestination, ByBudget, ByDuration:
		return k
	default:
		return ByDate
	}
}

// SortBy returns a sorted copy of trips. The sort is stable: trips that
// compare equal keep their input order in both directions.
func SortBy(trips []models.Trip, key SortKey, ascending bool) []models.Trip {
	out := make([]models.Trip, len(trips))
	copy(out, trips)

	cmp := compareFunc(key)
	sort.SliceStable(out, func(i, j int) bool {
		c := cmp(out[i], out[j])
		if ascending {
			return c < 0
		}
		return c > 0
	})
	return out
}

func compareFunc(key SortKey) func(a, b models.Trip) int {
	switch key {
	case ByDestination:
		return func(a, b models.Trip) int {
			return strings.Compare(text.Fold(a.Destination), text.Fold(b.Destination))
		}
	case ByBudget:
		return func(a, b models.Trip) int { return cmpFloat(a.TotalBudget, b.TotalBudget) }
	case ByDuration:
		return func(a, b models.Trip) int { return a.TotalDays - b.TotalDays }
	default:
		return func(a, b models.Trip) int { return a.StartDate.Compare(b.StartDate) }
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// FilterByDestination keeps trips whose destination contains query,
// ignoring case (text.Fold). An empty query keeps everything.
func FilterByDestination(trips []models.Trip, query string) []models.Trip {
	q := text.Fold(strings.TrimSpace(query))
	out := make([]models.Trip, 0, len(trips))
	for _, t := range trips {
		if q == "" || strings.Contains(text.Fold(t.Destination), q) {
			out = append(out, t)
		}
	}
	return out
}

// internal/domain/models/trip.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Trip is a planned or completed itinerary. Sections are embedded and
// ordered; they have no identity outside their trip.
//
// TotalBudget and TotalDays are stored for display but are always derived
// by the trips service (budget from sections, days from the date range).
type Trip struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Destination string             `bson:"destination" json:"destination"`
	StartDate   time.Time          `bson:"start_date" json:"start_date"`
	EndDate     time.Time          `bson:"end_date" json:"end_date"`
	TotalDays   int                `bson:"total_days" json:"total_days"`
	TotalBudget float64            `bson:"total_budget" json:"total_budget"`
	UserEmail   string             `bson:"user_email,omitempty" json:"user_email,omitempty"`
	Sections    []Section          `bson:"sections" json:"sections"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Section is one stop or activity within a trip.
type Section struct {
	Name       string  `bson:"name" json:"name"`
	Budget     float64 `bson:"budget" json:"budget"`
	DaysToStay int     `bson:"days_to_stay" json:"days_to_stay"`
	DateRange  string  `bson:"date_range" json:"date_range"` // display label, e.g. "Day 1-2"
	IsEditable bool    `bson:"is_editable" json:"is_editable"`
}

// SectionBudget sums the budgets of sections.
func SectionBudget(sections []Section) float64 {
	var total float64
	for _, s := range sections {
		total += s.Budget
	}
	return total
}

// SpanDays returns the inclusive number of calendar days between start and
// end (UTC). A same-day trip is 1 day; end before start yields 0.
func SpanDays(start, end time.Time) int {
	s := DateOnly(start)
	e := DateOnly(end)
	if e.Before(s) {
		return 0
	}
	return int(e.Sub(s).Hours()/24) + 1
}

// DateOnly truncates t to midnight UTC.
func DateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate accepts a calendar date ("2024-06-01") or an RFC 3339 timestamp
// and returns the UTC day it falls on.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return DateOnly(t), nil
}

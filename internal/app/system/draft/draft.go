// Package draft holds the in-progress trip a traveler builds across the
// planner steps (destination, suggestions, review) before it is saved.
//
// A Draft is a plain value: every method returns a new Draft and leaves the
// receiver unchanged, so callers thread it through the steps explicitly.
package draft

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/globaltrotter/globaltrotter/internal/app/services/trips"
	"github.com/globaltrotter/globaltrotter/internal/app/system/suggest"
	"github.com/globaltrotter/globaltrotter/internal/domain/models"
)

// ErrIndexOutOfRange is returned when a section index does not exist.
var ErrIndexOutOfRange = errors.New("section index out of range")

// Section is a candidate stop in a draft.
type Section struct {
	Name       string  `json:"name"`
	Budget     float64 `json:"budget"`
	DaysToStay int     `json:"days_to_stay"`
	DateRange  string  `json:"date_range"`
	IsEditable bool    `json:"is_editable"`
}

// Draft is a trip that has not been saved yet.
type Draft struct {
	Destination string    `json:"destination"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Sections    []Section `json:"sections"`
}

// New starts a draft for destination over [start, end].
func New(destination string, start, end time.Time) Draft {
	return Draft{
		Destination: strings.TrimSpace(destination),
		StartDate:   models.DateOnly(start),
		EndDate:     models.DateOnly(end),
		Sections:    []Section{},
	}
}

// Days is the inclusive length of the draft's date range.
func (d Draft) Days() int {
	return models.SpanDays(d.StartDate, d.EndDate)
}

// Budget sums the section budgets.
func (d Draft) Budget() float64 {
	var total float64
	for _, s := range d.Sections {
		total += s.Budget
	}
	return total
}

// PlannedDays sums the sections' days.
func (d Draft) PlannedDays() int {
	n := 0
	for _, s := range d.Sections {
		n += s.DaysToStay
	}
	return n
}

func (d Draft) withSections(sections []Section) Draft {
	d.Sections = sections
	return d
}

func (d Draft) copySections() []Section {
	out := make([]Section, len(d.Sections))
	copy(out, d.Sections)
	return out
}

// AddSection appends s as a section the traveler added by hand, so it is
// always editable. An empty DateRange is filled by Relabel.
func (d Draft) AddSection(s Section) Draft {
	s.IsEditable = true
	out := append(d.copySections(), s)
	return d.withSections(out).Relabel()
}

// RemoveSection drops the section at i.
func (d Draft) RemoveSection(i int) (Draft, error) {
	if i < 0 || i >= len(d.Sections) {
		return d, fmt.Errorf("remove %d: %w", i, ErrIndexOutOfRange)
	}
	out := d.copySections()
	out = append(out[:i], out[i+1:]...)
	return d.withSections(out).Relabel(), nil
}

// MoveSection moves the section at from so it ends up at index to.
func (d Draft) MoveSection(from, to int) (Draft, error) {
	n := len(d.Sections)
	if from < 0 || from >= n || to < 0 || to >= n {
		return d, fmt.Errorf("move %d to %d: %w", from, to, ErrIndexOutOfRange)
	}
	out := d.copySections()
	s := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]Section{s}, out[to:]...)...)
	return d.withSections(out).Relabel(), nil
}

// Relabel rewrites every DateRange as "Day X-Y" from the running day count.
func (d Draft) Relabel() Draft {
	out := d.copySections()
	day := 1
	for i := range out {
		n := out[i].DaysToStay
		if n < 1 {
			n = 1
		}
		out[i].DateRange = Label(day, day+n-1)
		day += n
	}
	return d.withSections(out)
}

// Label formats a day span: "Day 3" for one day, "Day 3-5" otherwise.
func Label(first, last int) string {
	if last <= first {
		return fmt.Sprintf("Day %d", first)
	}
	return fmt.Sprintf("Day %d-%d", first, last)
}

// FromSuggestions replaces the draft's sections with suggestions. Derived
// sections are not editable.
func (d Draft) FromSuggestions(list []suggest.Suggestion) Draft {
	out := make([]Section, 0, len(list))
	for _, s := range list {
		days := s.DaysToStay
		if days < 1 {
			days = 1
		}
		out = append(out, Section{
			Name:       s.Name,
			Budget:     s.Budget,
			DaysToStay: days,
		})
	}
	return d.withSections(out).Relabel()
}

// SuggestRequest builds the suggestion query for the draft.
func (d Draft) SuggestRequest(budget float64, activities []string) suggest.Request {
	return suggest.Request{
		Location:   d.Destination,
		Activities: activities,
		Days:       d.Days(),
		Budget:     budget,
	}
}

// ToCreateRequest converts the draft into a trip creation request owned by
// userEmail (which may be empty).
func (d Draft) ToCreateRequest(userEmail string) trips.CreateTripRequest {
	sections := make([]trips.SectionInput, len(d.Sections))
	for i, s := range d.Sections {
		sections[i] = trips.SectionInput{
			Name:       s.Name,
			Budget:     s.Budget,
			DaysToStay: s.DaysToStay,
			DateRange:  s.DateRange,
			IsEditable: s.IsEditable,
		}
	}
	return trips.CreateTripRequest{
		Destination: d.Destination,
		StartDate:   d.StartDate,
		EndDate:     d.EndDate,
		UserEmail:   userEmail,
		Sections:    sections,
	}
}

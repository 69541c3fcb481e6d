package tripclass

import (
	"sort"
	"strings"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/globaltrotter/globaltrotter/internal/domain/models"
)

// TopDestinationsLimit caps Summary.TopDestinations.
const TopDestinationsLimit = 5

// DestinationCount is one row of the top-destinations table.
type DestinationCount struct {
	Destination string  `json:"destination"`
	Trips       int     `json:"trips"`
	Budget      float64 `json:"budget"`
}

// Summary holds dashboard aggregates over a set of trips.
type Summary struct {
	TotalTrips      int                `json:"total_trips"`
	Ongoing         int                `json:"ongoing"`
	Upcoming        int                `json:"upcoming"`
	Completed       int                `json:"completed"`
	TotalBudget     float64            `json:"total_budget"`
	AverageBudget   float64            `json:"average_budget"`
	TotalDays       int                `json:"total_days"`
	AverageDays     float64            `json:"average_days"`
	TopDestinations []DestinationCount `json:"top_destinations"`
}

// Summarize computes aggregates over trips as of now. Destinations are
// grouped case-insensitively; the first spelling seen is reported. Ties in
// the top list are broken by total budget, then name.
func Summarize(trips []models.Trip, now time.Time) Summary {
	s := Summary{TotalTrips: len(trips), TopDestinations: []DestinationCount{}}
	if len(trips) == 0 {
		return s
	}

	byDest := map[string]*DestinationCount{}
	for _, t := range trips {
		switch StatusOf(t, now) {
		case Ongoing:
			s.Ongoing++
		case Upcoming:
			s.Upcoming++
		default:
			s.Completed++
		}
		s.TotalBudget += t.TotalBudget
		s.TotalDays += t.TotalDays

		key := text.Fold(strings.TrimSpace(t.Destination))
		dc, ok := byDest[key]
		if !ok {
			dc = &DestinationCount{Destination: strings.TrimSpace(t.Destination)}
			byDest[key] = dc
		}
		dc.Trips++
		dc.Budget += t.TotalBudget
	}

	n := float64(len(trips))
	s.AverageBudget = round2(s.TotalBudget / n)
	s.AverageDays = round2(float64(s.TotalDays) / n)

	all := make([]DestinationCount, 0, len(byDest))
	for _, dc := range byDest {
		all = append(all, *dc)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Trips != all[j].Trips {
			return all[i].Trips > all[j].Trips
		}
		if all[i].Budget != all[j].Budget {
			return all[i].Budget > all[j].Budget
		}
		return all[i].Destination < all[j].Destination
	})
	if len(all) > TopDestinationsLimit {
		all = all[:TopDestinationsLimit]
	}
	s.TopDestinations = all
	return s
}

func round2(v float64) float64 {
	if v < 0 {
		return -round2(-v)
	}
	return float64(int64(v*100+0.5)) / 100
}

// Package analytics turns click events into grouped statistics.
// Everything here is pure and holds no state between calls.
package analytics

import (
	"math"
	"sort"

	"github.com/wadjakorntonsri/trimrr/pkg/core/domain"
)

// UnknownLocation labels events whose geo lookup failed.
const UnknownLocation = "Unknown"

// GroupByDevice buckets events by device category.
func GroupByDevice(events []domain.ClickEvent) []domain.Group {
	return groupBy(events, func(e domain.ClickEvent) string {
		if e.Device == "" {
			return string(domain.DeviceUnknown)
		}
		return string(e.Device)
	})
}

// GroupByLocation buckets events by "City, Country".
func GroupByLocation(events []domain.ClickEvent) []domain.Group {
	return groupBy(events, func(e domain.ClickEvent) string {
		if e.Location == nil {
			return UnknownLocation
		}
		if label := e.Location.Label(); label != "" {
			return label
		}
		return UnknownLocation
	})
}

// Summarize builds the full snapshot for one link.
func Summarize(linkID int64, events []domain.ClickEvent) domain.LinkStats {
	return domain.LinkStats{
		LinkID:      linkID,
		TotalClicks: len(events),
		Devices:     GroupByDevice(events),
		Locations:   GroupByLocation(events),
	}
}

func groupBy(events []domain.ClickEvent, label func(domain.ClickEvent) string) []domain.Group {
	groups := make([]domain.Group, 0)
	total := len(events)
	if total == 0 {
		return groups
	}

	counts := make(map[string]int)
	for _, e := range events {
		counts[label(e)]++
	}

	for l, c := range counts {
		groups = append(groups, domain.Group{
			Label:      l,
			Count:      c,
			Percentage: percentage(c, total),
		})
	}

	// count desc, label asc: identical sets always render identically
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Label < groups[j].Label
	})

	return groups
}

func percentage(count, total int) float64 {
	return math.Round(float64(count)*1000/float64(total)) / 10
}

package storage

import (
	"streamgate/internal/models"
)

const dayLayout = "2006-01-02"

// AggregateViewEvents computes totals, distinct viewer count, and the per-day
// histogram for the events that fall inside the range. Days without events are
// omitted rather than zero-filled; with no matching events the result is
// {0, 0, {}}.
func AggregateViewEvents(events []models.ViewEvent, rng ViewRange) models.ViewStats {
	stats := models.ViewStats{PerDay: make(map[string]int)}
	seen := make(map[string]struct{})
	for _, event := range events {
		if !rng.Contains(event.Timestamp) {
			continue
		}
		stats.TotalViews++
		if _, ok := seen[event.ViewerIP]; !ok {
			seen[event.ViewerIP] = struct{}{}
			stats.UniqueIPs++
		}
		stats.PerDay[event.Timestamp.UTC().Format(dayLayout)]++
	}
	return stats
}

// Package temporal builds dense daily series from sparse aggregate points.
package temporal

import (
	"sort"

	"github.com/okian/healthscore/internal/domain/calendar"
	"github.com/okian/healthscore/internal/domain/model"
)

// Reconstruct returns exactly one point per calendar day in [start, end] for
// every group key observed in raw. Days without a fresh observation repeat the
// last known state of that group with the date rewritten; values are never
// interpolated or zeroed. Groups are filled independently. An inverted range
// is swapped. The result is sorted by (date, group key).
func Reconstruct(raw []model.TemporalPoint, start, end calendar.Date) []model.TemporalPoint {
	if len(raw) == 0 {
		return []model.TemporalPoint{}
	}
	r := calendar.Range{From: start, To: end}.Normalize()
	days := r.Days()

	partitions := partition(raw)
	out := make([]model.TemporalPoint, 0, days*len(partitions))
	for _, points := range partitions {
		out = fill(out, points, r, days)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].RecordedDate.Compare(out[j].RecordedDate); c != 0 {
			return c < 0
		}
		return out[i].GroupKey < out[j].GroupKey
	})
	return out
}

// partition splits raw by group key and sorts each partition by date.
func partition(raw []model.TemporalPoint) map[string][]model.TemporalPoint {
	parts := make(map[string][]model.TemporalPoint)
	for _, p := range raw {
		parts[p.GroupKey] = append(parts[p.GroupKey], p)
	}
	for _, points := range parts {
		sort.SliceStable(points, func(i, j int) bool {
			return points[i].RecordedDate.Before(points[j].RecordedDate)
		})
	}
	return parts
}

// fill appends one point per day of r for a single, date-sorted partition.
func fill(out, points []model.TemporalPoint, r calendar.Range, days int) []model.TemporalPoint {
	byDate := make(map[calendar.Date]model.TemporalPoint, len(points))
	for _, p := range points {
		// later duplicates for the same day win
		byDate[p.RecordedDate] = p
	}

	lastKnown := seed(points, r.From)
	day := r.From
	for i := 0; i < days; i++ {
		if p, ok := byDate[day]; ok {
			lastKnown = p
			out = append(out, p.Clone())
		} else {
			filled := lastKnown.Clone()
			filled.RecordedDate = day
			out = append(out, filled)
		}
		day = day.AddDays(1)
	}
	return out
}

// seed picks the latest point at or before start, or the earliest point when
// nothing precedes start.
func seed(points []model.TemporalPoint, start calendar.Date) model.TemporalPoint {
	idx := sort.Search(len(points), func(i int) bool {
		return points[i].RecordedDate.After(start)
	})
	if idx == 0 {
		return points[0]
	}
	return points[idx-1]
}

package temporal

import (
	"sort"

	"github.com/okian/healthscore/internal/domain/calendar"
	"github.com/okian/healthscore/internal/domain/model"
)

type aggKey struct {
	date  calendar.Date
	group string
}

type accumulator struct {
	total   int
	score   float64
	pillars model.Breakdown
	counts  map[model.Category]int
}

// Aggregate folds per-client history records into one point per (date, group key).
// Averages are plain means over the clients recorded that day.
func Aggregate(records []model.HistoryRecord) []model.TemporalPoint {
	acc := make(map[aggKey]*accumulator)
	for _, r := range records {
		k := aggKey{date: r.RecordedDate, group: r.GroupKey}
		a, ok := acc[k]
		if !ok {
			a = &accumulator{counts: make(map[model.Category]int)}
			acc[k] = a
		}
		a.total++
		a.score += r.Score
		a.pillars = a.pillars.Add(r.Breakdown)
		a.counts[r.Category]++
	}

	out := make([]model.TemporalPoint, 0, len(acc))
	for k, a := range acc {
		n := float64(a.total)
		out = append(out, model.TemporalPoint{
			RecordedDate:     k.date,
			GroupKey:         k.group,
			TotalClients:     a.total,
			AvgScore:         a.score / n,
			CountsByCategory: a.counts,
			AvgPillars:       a.pillars.Scale(1 / n),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].RecordedDate.Compare(out[j].RecordedDate); c != 0 {
			return c < 0
		}
		return out[i].GroupKey < out[j].GroupKey
	})
	return out
}

// Package trend compares the recent half of a daily series with the half before it.
package trend

import (
	"math"
	"sort"

	"github.com/okian/healthscore/internal/domain/calendar"
	"github.com/okian/healthscore/internal/domain/model"
)

// Trend labels.
const (
	Improving = "improving"
	Declining = "declining"
	Stable    = "stable"
)

const (
	defaultMargin      = 5.0
	defaultMateriality = 1.0
	minDays            = 2
)

// PillarChange is one pillar's weighted delta between the windows.
type PillarChange struct {
	Pillar string  `json:"pillar"`
	Delta  float64 `json:"delta"`
}

// Metrics is the result of Analyze. When HasData is false every numeric field
// is zero and OverallTrend is Stable.
type Metrics struct {
	HasData      bool               `json:"has_data"`
	OverallTrend string             `json:"overall_trend"`
	PriorAvg     float64            `json:"prior_avg"`
	RecentAvg    float64            `json:"recent_avg"`
	ScoreChange  float64            `json:"score_change"`
	PillarDeltas map[string]float64 `json:"pillar_deltas"`
	Improvements []PillarChange     `json:"improvements"`
	Concerns     []PillarChange     `json:"concerns"`
	Volatility   float64            `json:"volatility"`
	Days         int                `json:"days"`
	PriorDays    int                `json:"prior_days"`
	RecentDays   int                `json:"recent_days"`
}

// Option applies a configuration option to Analyze.
type Option func(*options)

type options struct {
	margin      float64
	materiality float64
}

// WithMargin sets the score delta above which the trend is not stable.
func WithMargin(margin float64) Option {
	return func(o *options) {
		if margin > 0 {
			o.margin = margin
		}
	}
}

// WithMateriality sets the pillar delta reported as an improvement or concern.
func WithMateriality(threshold float64) Option {
	return func(o *options) {
		if threshold > 0 {
			o.materiality = threshold
		}
	}
}

// day is the client-weighted sum of every point recorded on one date.
type day struct {
	date    calendar.Date
	clients float64
	score   float64         // Σ score × clients
	pillars model.Breakdown // Σ pillars × clients
}

// Analyze splits series into a prior and a recent window of near-equal length
// (an odd extra day goes to recent) and compares client-weighted averages.
// Points sharing a date always fall in the same window. Fewer than two
// distinct days yields a neutral result.
func Analyze(series []model.TemporalPoint, opts ...Option) Metrics {
	o := options{margin: defaultMargin, materiality: defaultMateriality}
	for _, opt := range opts {
		opt(&o)
	}

	days := byDay(series)
	if len(days) < minDays {
		return Metrics{OverallTrend: Stable, PillarDeltas: map[string]float64{}, Days: len(days)}
	}

	split := len(days) / 2
	prior, recent := days[:split], days[split:]
	priorScore, priorPillars := weighted(prior)
	recentScore, recentPillars := weighted(recent)

	m := Metrics{
		HasData:      true,
		PriorAvg:     priorScore,
		RecentAvg:    recentScore,
		ScoreChange:  recentScore - priorScore,
		PillarDeltas: make(map[string]float64, len(model.Pillars)),
		Volatility:   volatility(days),
		Days:         len(days),
		PriorDays:    len(prior),
		RecentDays:   len(recent),
	}
	switch {
	case m.ScoreChange > o.margin:
		m.OverallTrend = Improving
	case m.ScoreChange < -o.margin:
		m.OverallTrend = Declining
	default:
		m.OverallTrend = Stable
	}

	for _, p := range model.Pillars {
		delta := recentPillars.Get(p) - priorPillars.Get(p)
		m.PillarDeltas[p] = delta
		switch {
		case delta > o.materiality:
			m.Improvements = append(m.Improvements, PillarChange{Pillar: p, Delta: delta})
		case delta < -o.materiality:
			m.Concerns = append(m.Concerns, PillarChange{Pillar: p, Delta: delta})
		}
	}
	sortByMagnitude(m.Improvements)
	sortByMagnitude(m.Concerns)
	return m
}

// byDay folds points into one weighted entry per date, ascending.
func byDay(series []model.TemporalPoint) []day {
	idx := make(map[calendar.Date]int)
	var days []day
	for _, p := range series {
		i, ok := idx[p.RecordedDate]
		if !ok {
			i = len(days)
			idx[p.RecordedDate] = i
			days = append(days, day{date: p.RecordedDate})
		}
		w := float64(p.TotalClients)
		days[i].clients += w
		days[i].score += p.AvgScore * w
		days[i].pillars = days[i].pillars.Add(p.AvgPillars.Scale(w))
	}
	sort.Slice(days, func(i, j int) bool { return days[i].date.Before(days[j].date) })
	return days
}

// weighted returns Σ(score×clients)/Σ(clients) over a window.
func weighted(window []day) (float64, model.Breakdown) {
	var clients, score float64
	var pillars model.Breakdown
	for _, d := range window {
		clients += d.clients
		score += d.score
		pillars = pillars.Add(d.pillars)
	}
	if clients == 0 {
		return 0, model.Breakdown{}
	}
	return score / clients, pillars.Scale(1 / clients)
}

// volatility is the population standard deviation of the per-day weighted scores.
func volatility(days []day) float64 {
	var values []float64
	for _, d := range days {
		if d.clients > 0 {
			values = append(values, d.score/d.clients)
		}
	}
	if len(values) == 0 {
		return 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return math.Sqrt(sq / float64(len(values)))
}

func sortByMagnitude(changes []PillarChange) {
	sort.SliceStable(changes, func(i, j int) bool {
		return math.Abs(changes[i].Delta) > math.Abs(changes[j].Delta)
	})
}

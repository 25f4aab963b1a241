package model

import "github.com/okian/healthscore/internal/domain/calendar"

// Category is a health band. New and Lost only appear in movement analysis.
type Category string

const (
	Excellent Category = "Excellent"
	Stable    Category = "Stable"
	Warning   Category = "Warning"
	Critical  Category = "Critical"
	New       Category = "New"
	Lost      Category = "Lost"
)

// HealthCategories lists the four score bands, best first.
var HealthCategories = []Category{Excellent, Stable, Warning, Critical} //nolint:gochecknoglobals // fixed ordinal scale

// MovementCategories lists every category that can appear on a movement edge.
var MovementCategories = []Category{Excellent, Stable, Warning, Critical, New, Lost} //nolint:gochecknoglobals // fixed set

// Rank orders health bands Critical < Warning < Stable < Excellent.
// New and Lost have no rank and return -1.
func (c Category) Rank() int {
	switch c {
	case Critical:
		return 0
	case Warning:
		return 1
	case Stable:
		return 2
	case Excellent:
		return 3
	}
	return -1
}

// IsHealth reports whether c is one of the four score bands.
func (c Category) IsHealth() bool { return c.Rank() >= 0 }

// Pillar names.
const (
	PillarSatisfaction = "satisfaction"
	PillarReferral     = "referral"
	PillarPayment      = "payment"
	PillarCrossSell    = "cross_sell"
	PillarTenure       = "tenure"
)

// Pillars lists pillar names in reporting order.
var Pillars = []string{PillarSatisfaction, PillarReferral, PillarPayment, PillarCrossSell, PillarTenure} //nolint:gochecknoglobals // fixed set

// Breakdown holds per-pillar contributions.
type Breakdown struct {
	Satisfaction float64 `json:"satisfaction"`
	Referral     float64 `json:"referral"`
	Payment      float64 `json:"payment"`
	CrossSell    float64 `json:"cross_sell"`
	Tenure       float64 `json:"tenure"`
}

// Get returns the named pillar value.
func (b Breakdown) Get(pillar string) float64 {
	switch pillar {
	case PillarSatisfaction:
		return b.Satisfaction
	case PillarReferral:
		return b.Referral
	case PillarPayment:
		return b.Payment
	case PillarCrossSell:
		return b.CrossSell
	case PillarTenure:
		return b.Tenure
	}
	return 0
}

// Sum adds every pillar.
func (b Breakdown) Sum() float64 {
	return b.Satisfaction + b.Referral + b.Payment + b.CrossSell + b.Tenure
}

// Scale multiplies every pillar by f.
func (b Breakdown) Scale(f float64) Breakdown {
	return Breakdown{
		Satisfaction: b.Satisfaction * f,
		Referral:     b.Referral * f,
		Payment:      b.Payment * f,
		CrossSell:    b.CrossSell * f,
		Tenure:       b.Tenure * f,
	}
}

// Add returns b + o pillar-wise.
func (b Breakdown) Add(o Breakdown) Breakdown {
	return Breakdown{
		Satisfaction: b.Satisfaction + o.Satisfaction,
		Referral:     b.Referral + o.Referral,
		Payment:      b.Payment + o.Payment,
		CrossSell:    b.CrossSell + o.CrossSell,
		Tenure:       b.Tenure + o.Tenure,
	}
}

// ScoreResult is the output of the score engine.
type ScoreResult struct {
	Score     float64   `json:"score"`
	Category  Category  `json:"category"`
	Breakdown Breakdown `json:"breakdown"`
}

// HistoryRecord is one committed score per client per day.
type HistoryRecord struct {
	ClientID     string        `json:"client_id"`
	RecordedDate calendar.Date `json:"recorded_date"`
	GroupKey     string        `json:"group_key"`
	Score        float64       `json:"score"`
	Category     Category      `json:"category"`
	Breakdown    Breakdown     `json:"breakdown"`
}

// TemporalPoint aggregates the history of one group on one day.
type TemporalPoint struct {
	RecordedDate     calendar.Date    `json:"recorded_date"`
	GroupKey         string           `json:"group_key"`
	TotalClients     int              `json:"total_clients"`
	AvgScore         float64          `json:"avg_score"`
	CountsByCategory map[Category]int `json:"counts_by_category"`
	AvgPillars       Breakdown        `json:"avg_pillars"`
}

// Clone returns a deep copy of p.
func (p TemporalPoint) Clone() TemporalPoint {
	out := p
	if p.CountsByCategory != nil {
		out.CountsByCategory = make(map[Category]int, len(p.CountsByCategory))
		for k, v := range p.CountsByCategory {
			out.CountsByCategory[k] = v
		}
	}
	return out
}

// MovementEdge groups the clients that moved from one category to another.
type MovementEdge struct {
	From      Category `json:"from"`
	To        Category `json:"to"`
	ClientIDs []string `json:"client_ids"`
}

// Size returns the number of clients on the edge.
func (e MovementEdge) Size() int { return len(e.ClientIDs) }

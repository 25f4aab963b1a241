// Package scoring computes a client's health score from business signals.
package scoring

import (
	"fmt"
	"math"

	"github.com/okian/healthscore/internal/domain/model"
)

// Step awards Points once a value reaches Min.
type Step struct {
	Min    int
	Points float64
}

// Policy holds the pillar coefficients and category thresholds.
type Policy struct {
	// Satisfaction, rated 0..10.
	PromoterMin            int
	PassiveMin             int
	SatisfactionPromoter   float64
	SatisfactionPassive    float64
	SatisfactionDetractor  float64
	SatisfactionUnmeasured float64

	// Referral bonus, only for promoters with an observed referral.
	ReferralBonus float64

	// Payment tiers by installments and days overdue.
	PaymentCurrent       float64
	PaymentOneRecent     float64 // one installment, at most LateDaysThreshold days
	PaymentOneLate       float64 // one installment, beyond LateDaysThreshold days
	PaymentSeveral       float64 // two or more, below CollapseInstallments
	LateDaysThreshold    int
	CollapseInstallments int // at or above this the whole score is zero

	// Cross-sell: points per product up to a saturation count.
	CrossSellPerProduct  float64
	CrossSellMaxProducts int

	// Tenure steps in months, ascending.
	TenureSteps []Step

	// Lower bounds of the Excellent, Stable and Warning bands.
	ExcellentMin float64
	StableMin    float64
	WarningMin   float64
}

// DefaultPolicy returns the production coefficients.
func DefaultPolicy() Policy {
	return Policy{
		PromoterMin:            9,
		PassiveMin:             7,
		SatisfactionPromoter:   25,
		SatisfactionPassive:    15,
		SatisfactionDetractor:  0,
		SatisfactionUnmeasured: 10,

		ReferralBonus: 15,

		PaymentCurrent:       40,
		PaymentOneRecent:     30,
		PaymentOneLate:       20,
		PaymentSeveral:       10,
		LateDaysThreshold:    15,
		CollapseInstallments: 3,

		CrossSellPerProduct:  5,
		CrossSellMaxProducts: 3,

		TenureSteps: []Step{{Min: 6, Points: 5}, {Min: 12, Points: 10}, {Min: 24, Points: 15}},

		ExcellentMin: 100,
		StableMin:    75,
		WarningMin:   50,
	}
}

// RequiredMax is the best total reachable without the referral bonus.
func (p Policy) RequiredMax() float64 {
	tenureMax := 0.0
	for _, s := range p.TenureSteps {
		tenureMax = math.Max(tenureMax, s.Points)
	}
	satMax := math.Max(p.SatisfactionPromoter, math.Max(p.SatisfactionPassive, p.SatisfactionUnmeasured))
	return satMax + p.PaymentCurrent + p.CrossSellPerProduct*float64(p.CrossSellMaxProducts) + tenureMax
}

// Validate checks that the bands are ordered and that Excellent needs a bonus pillar.
func (p Policy) Validate() error {
	if !(p.ExcellentMin > p.StableMin && p.StableMin > p.WarningMin) {
		return fmt.Errorf("category thresholds must be strictly descending: %v > %v > %v: %w",
			p.ExcellentMin, p.StableMin, p.WarningMin, ErrInvalidPolicy)
	}
	if p.ExcellentMin <= p.RequiredMax() {
		return fmt.Errorf("excellent threshold %v must exceed required pillar maximum %v: %w",
			p.ExcellentMin, p.RequiredMax(), ErrInvalidPolicy)
	}
	if p.CollapseInstallments < 2 {
		return fmt.Errorf("collapse installments must be at least 2, got %d: %w", p.CollapseInstallments, ErrInvalidPolicy)
	}
	for i := 1; i < len(p.TenureSteps); i++ {
		if p.TenureSteps[i].Min <= p.TenureSteps[i-1].Min || p.TenureSteps[i].Points < p.TenureSteps[i-1].Points {
			return fmt.Errorf("tenure steps must be ascending: %w", ErrInvalidPolicy)
		}
	}
	return nil
}

// Scorer computes a score result from a client record.
type Scorer interface {
	Compute(c model.ClientRecord) model.ScoreResult
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithPolicy replaces the default policy.
func WithPolicy(p Policy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// Engine is the deterministic, side-effect-free score engine.
type Engine struct {
	policy Policy
}

// NewEngine creates an engine with the default policy unless overridden.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{policy: DefaultPolicy()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the engine's policy.
func (e *Engine) Policy() Policy { return e.policy }

// Compute scores c. Missing numeric fields never fail; each degrades to the
// neutral contribution documented on its pillar function.
func (e *Engine) Compute(c model.ClientRecord) model.ScoreResult {
	p := e.policy

	b := model.Breakdown{
		Satisfaction: p.satisfaction(c.Satisfaction),
		Referral:     p.referral(c.Satisfaction, c.ReferralObserved),
		CrossSell:    p.crossSell(c.CrossSellCount),
		Tenure:       p.tenure(effectiveTenure(c)),
	}
	payment, collapsed := p.payment(c.InstallmentsOverdue, c.DaysOverdue)
	b.Payment = payment

	score := b.Sum()
	if collapsed {
		// a client who stops paying is critical regardless of everything else
		score = 0
	}
	return model.ScoreResult{
		Score:     score,
		Category:  p.Categorize(score),
		Breakdown: b,
	}
}

// Categorize maps a total score onto a band.
func (p Policy) Categorize(score float64) model.Category {
	switch {
	case score >= p.ExcellentMin:
		return model.Excellent
	case score >= p.StableMin:
		return model.Stable
	case score >= p.WarningMin:
		return model.Warning
	default:
		return model.Critical
	}
}

// satisfaction: nil is "unmeasured", distinct from the best and worst buckets.
func (p Policy) satisfaction(rating *int) float64 {
	if rating == nil {
		return p.SatisfactionUnmeasured
	}
	switch r := *rating; {
	case r >= p.PromoterMin:
		return p.SatisfactionPromoter
	case r >= p.PassiveMin:
		return p.SatisfactionPassive
	default:
		return p.SatisfactionDetractor
	}
}

func (p Policy) referral(rating *int, observed bool) float64 {
	if rating != nil && *rating >= p.PromoterMin && observed {
		return p.ReferralBonus
	}
	return 0
}

// payment: nil counts are treated as up to date. The second return reports
// that the collapse threshold was reached.
func (p Policy) payment(installments, days *int) (float64, bool) {
	n := valueOr(installments, 0)
	d := valueOr(days, 0)
	switch {
	case n >= p.CollapseInstallments:
		return 0, true
	case n >= 2:
		return p.PaymentSeveral, false
	case n == 1 && d > p.LateDaysThreshold:
		return p.PaymentOneLate, false
	case n == 1:
		return p.PaymentOneRecent, false
	default:
		return p.PaymentCurrent, false
	}
}

// crossSell: nil counts as no products.
func (p Policy) crossSell(count *int) float64 {
	n := valueOr(count, 0)
	if n < 0 {
		n = 0
	}
	if n > p.CrossSellMaxProducts {
		n = p.CrossSellMaxProducts
	}
	return float64(n) * p.CrossSellPerProduct
}

// tenure: nil counts as a brand new relationship.
func (p Policy) tenure(months *int) float64 {
	m := valueOr(months, 0)
	points := 0.0
	for _, s := range p.TenureSteps {
		if m >= s.Min {
			points = s.Points
		}
	}
	return points
}

// effectiveTenure returns the linked payer's tenure for resolved spouse
// records. Only tenure is inherited.
func effectiveTenure(c model.ClientRecord) *int {
	if c.SpouseLinked && c.PayerTenureMonths != nil {
		return c.PayerTenureMonths
	}
	return c.TenureMonths
}

func valueOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

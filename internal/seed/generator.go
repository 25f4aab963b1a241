package seed

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/okian/healthscore/internal/domain/model"
)

// Client profiles, drawn with equal weight.
const (
	profilePromoter = iota
	profilePassive
	profileDetractor
	profileLatePayer
	profileSparse
	profileCount
)

// namespace scopes generated client ids so equal seeds give equal ids.
var namespace = uuid.MustParse("6f1c0b8e-3d1a-4c55-9a3e-6c2f1b0d7e41") //nolint:gochecknoglobals // fixed id namespace

// generator produces and evolves a deterministic roster.
type generator struct {
	rng *rand.Rand
	cfg Config
}

func newGenerator(cfg Config) *generator {
	return &generator{
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		cfg: cfg,
	}
}

// clientID derives a stable id for the i-th client.
func (g *generator) clientID(i int) string {
	return uuid.NewSHA1(namespace, fmt.Appendf(nil, "%d/%d", g.cfg.Seed, i)).String()
}

// roster builds the initial roster as it stood on the first history day.
func (g *generator) roster() []model.ClientRecord {
	out := make([]model.ClientRecord, g.cfg.Clients)
	for i := range out {
		advisor := i % g.cfg.Advisors
		manager := advisor % g.cfg.Managers
		c := model.ClientRecord{
			ID: g.clientID(i),
			Hierarchy: model.Hierarchy{
				Advisor:  fmt.Sprintf("adv-%02d", advisor),
				Manager:  fmt.Sprintf("mgr-%02d", manager),
				Mediator: fmt.Sprintf("med-%02d", i%mediators),
				TeamLead: fmt.Sprintf("tl-%02d", manager%teamLeads),
			},
		}
		g.profile(&c)
		if g.cfg.SpouseGap > 0 && i > 0 && i%g.cfg.SpouseGap == 0 {
			c.SpouseLinked = true
			c.LinkedPayerID = out[i-1].ID
		}
		out[i] = c
	}
	return out
}

func (g *generator) profile(c *model.ClientRecord) {
	switch g.rng.IntN(profileCount) {
	case profilePromoter:
		c.Satisfaction = model.Int(9 + g.rng.IntN(2))
		c.ReferralObserved = g.rng.IntN(2) == 0
		c.InstallmentsOverdue = model.Int(0)
		c.CrossSellCount = model.Int(1 + g.rng.IntN(4))
		c.TenureMonths = model.Int(6 + g.rng.IntN(55))
	case profilePassive:
		c.Satisfaction = model.Int(7 + g.rng.IntN(2))
		c.InstallmentsOverdue = model.Int(g.rng.IntN(2))
		c.DaysOverdue = model.Int(g.rng.IntN(20))
		c.CrossSellCount = model.Int(g.rng.IntN(3))
		c.TenureMonths = model.Int(g.rng.IntN(36))
	case profileDetractor:
		c.Satisfaction = model.Int(g.rng.IntN(7))
		c.InstallmentsOverdue = model.Int(g.rng.IntN(3))
		c.DaysOverdue = model.Int(g.rng.IntN(30))
		c.CrossSellCount = model.Int(g.rng.IntN(2))
		c.TenureMonths = model.Int(g.rng.IntN(24))
	case profileLatePayer:
		c.Satisfaction = model.Int(5 + g.rng.IntN(5))
		c.InstallmentsOverdue = model.Int(1 + g.rng.IntN(4))
		c.DaysOverdue = model.Int(1 + g.rng.IntN(60))
		c.CrossSellCount = model.Int(g.rng.IntN(3))
		c.TenureMonths = model.Int(g.rng.IntN(48))
	default:
		// sparse records keep most fields unset
		c.TenureMonths = model.Int(g.rng.IntN(12))
	}
}

// advance moves the roster forward one day in place.
func (g *generator) advance(roster []model.ClientRecord, day int) {
	for i := range roster {
		c := &roster[i]
		if c.Satisfaction != nil && g.rng.IntN(100) < satisfactionDriftPct {
			c.Satisfaction = model.Int(clamp(*c.Satisfaction+g.rng.IntN(3)-1, 0, 10))
		}
		if g.rng.IntN(100) < paymentDriftPct {
			g.payment(c)
		}
		if c.CrossSellCount != nil && g.rng.IntN(100) < crossSellDriftPct {
			c.CrossSellCount = model.Int(*c.CrossSellCount + 1)
		}
		if g.rng.IntN(100) < referralDriftPct {
			c.ReferralObserved = !c.ReferralObserved
		}
		if c.TenureMonths != nil && day > 0 && day%daysPerTenureMonth == 0 {
			c.TenureMonths = model.Int(*c.TenureMonths + 1)
		}
	}
}

// payment either settles the client or lets one more installment lapse.
func (g *generator) payment(c *model.ClientRecord) {
	overdue := 0
	if c.InstallmentsOverdue != nil {
		overdue = *c.InstallmentsOverdue
	}
	if overdue > 0 && g.rng.IntN(2) == 0 {
		c.InstallmentsOverdue = model.Int(0)
		c.DaysOverdue = model.Int(0)
		return
	}
	c.InstallmentsOverdue = model.Int(overdue + 1)
	c.DaysOverdue = model.Int(1 + g.rng.IntN(45))
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

package scoring

import (
	"github.com/okian/healthscore/internal/domain/cache"
	"github.com/okian/healthscore/internal/domain/model"
)

// Memo wraps a Scorer with a bounded cache keyed by client id plus a hash
// of the fields that feed the score. Safe for concurrent use.
type Memo struct {
	scorer Scorer
	cache  *cache.Cache[model.ScoreResult]
}

// NewMemo creates a memoizing scorer backed by c.
func NewMemo(scorer Scorer, c *cache.Cache[model.ScoreResult]) *Memo {
	return &Memo{scorer: scorer, cache: c}
}

// Compute returns the cached result for an unchanged client, computing it once otherwise.
func (m *Memo) Compute(c model.ClientRecord) model.ScoreResult {
	r, _ := m.Lookup(c)
	return r
}

// Lookup is Compute that also reports whether the result came from the cache.
func (m *Memo) Lookup(c model.ClientRecord) (model.ScoreResult, bool) {
	key := Fingerprint(c)
	if r, ok := m.cache.Get(key); ok {
		return r, true
	}
	r := m.scorer.Compute(c)
	m.cache.Put(key, r)
	return r, false
}

// Stats exposes the underlying cache counters.
func (m *Memo) Stats() (hits, misses int64) { return m.cache.Stats() }

// Fingerprint identifies a client together with the state of its scored fields.
func Fingerprint(c model.ClientRecord) string {
	return c.ID + "#" + cache.NewHasher().
		Int(c.Satisfaction).
		Bool(c.ReferralObserved).
		Int(c.InstallmentsOverdue).
		Int(c.DaysOverdue).
		Int(c.CrossSellCount).
		Int(c.TenureMonths).
		Bool(c.SpouseLinked).
		Int(c.PayerTenureMonths).
		Sum()
}

package scoring

import "github.com/okian/healthscore/internal/domain/model"

// LinkSpouses resolves PayerTenureMonths for spouse records whose linked payer
// is present in roster. The input slice is not modified. Unresolvable links
// keep whatever PayerTenureMonths they already carried.
func LinkSpouses(roster []model.ClientRecord) []model.ClientRecord {
	byID := make(map[string]int, len(roster))
	for i, c := range roster {
		byID[c.ID] = i
	}

	out := make([]model.ClientRecord, len(roster))
	copy(out, roster)
	for i := range out {
		c := &out[i]
		if !c.SpouseLinked || c.LinkedPayerID == "" {
			continue
		}
		idx, ok := byID[c.LinkedPayerID]
		if !ok {
			continue
		}
		if t := roster[idx].TenureMonths; t != nil {
			c.PayerTenureMonths = model.Int(*t)
		}
	}
	return out
}

// Package movement diffs two point-in-time category snapshots into transition
// edges, per-category flows and cohorts.
package movement

import (
	"sort"

	"github.com/okian/healthscore/internal/domain/calendar"
	"github.com/okian/healthscore/internal/domain/model"
)

// Snapshot is every client's category as of one date.
type Snapshot struct {
	Date       calendar.Date
	Categories map[string]model.Category
}

// Flow is the traffic through one category.
type Flow struct {
	Incoming  int `json:"incoming"`
	Outgoing  int `json:"outgoing"`
	NetChange int `json:"net_change"`
}

// Cohort is a named group of clients.
type Cohort struct {
	Count     int      `json:"count"`
	ClientIDs []string `json:"client_ids"`
}

// Cohorts partitions classified clients by behavior over the interval.
type Cohorts struct {
	Improving Cohort `json:"improving"`
	Declining Cohort `json:"declining"`
	Stable    Cohort `json:"stable"`
	New       Cohort `json:"new"`
	Lost      Cohort `json:"lost"`
}

// Result is the output of Analyze.
type Result struct {
	Edges   []model.MovementEdge    `json:"edges"`
	Flows   map[model.Category]Flow `json:"flows"`
	Cohorts Cohorts                 `json:"cohorts"`
}

type transition struct {
	from, to model.Category
}

// Analyze classifies every client in clientIDs, followed by any client that
// appears only in the snapshots (so departures off the roster still surface
// as Lost). Classification is by category, not by score delta. Equal start
// and end dates yield an empty result.
func Analyze(clientIDs []string, start, end Snapshot) Result {
	res := Result{Edges: []model.MovementEdge{}, Flows: emptyFlows()}
	if start.Date == end.Date {
		return res
	}

	groups := make(map[transition][]string)
	for _, id := range universe(clientIDs, start.Categories, end.Categories) {
		from, inStart := start.Categories[id]
		to, inEnd := end.Categories[id]

		var t transition
		switch {
		case !inStart && !inEnd:
			continue
		case !inStart:
			t = transition{from: model.New, to: to}
		case !inEnd:
			t = transition{from: from, to: model.Lost}
		default:
			t = transition{from: from, to: to}
		}
		// a lost client cannot transition any further
		if t.from == model.Lost {
			continue
		}
		groups[t] = append(groups[t], id)
		res.Cohorts.add(t, id)
	}

	for t, ids := range groups {
		sort.Strings(ids)
		res.Edges = append(res.Edges, model.MovementEdge{From: t.from, To: t.to, ClientIDs: ids})
	}
	sort.Slice(res.Edges, func(i, j int) bool {
		a, b := res.Edges[i], res.Edges[j]
		if a.From != b.From {
			return order(a.From) < order(b.From)
		}
		return order(a.To) < order(b.To)
	})

	for _, e := range res.Edges {
		in := res.Flows[e.To]
		in.Incoming += e.Size()
		res.Flows[e.To] = in

		out := res.Flows[e.From]
		out.Outgoing += e.Size()
		res.Flows[e.From] = out
	}
	for c, f := range res.Flows {
		f.NetChange = f.Incoming - f.Outgoing
		res.Flows[c] = f
	}
	res.Cohorts.sort()
	return res
}

func (c *Cohorts) add(t transition, id string) {
	switch {
	case t.from == model.New:
		c.New.push(id)
	case t.to == model.Lost:
		c.Lost.push(id)
	case t.from == t.to:
		c.Stable.push(id)
	case t.to.Rank() > t.from.Rank():
		c.Improving.push(id)
	default:
		c.Declining.push(id)
	}
}

func (c *Cohorts) sort() {
	for _, co := range []*Cohort{&c.Improving, &c.Declining, &c.Stable, &c.New, &c.Lost} {
		sort.Strings(co.ClientIDs)
	}
}

func (c *Cohort) push(id string) {
	c.Count++
	c.ClientIDs = append(c.ClientIDs, id)
}

// universe lists roster ids first, then snapshot-only ids, without duplicates.
func universe(roster []string, start, end map[string]model.Category) []string {
	seen := make(map[string]struct{}, len(roster)+len(start))
	ids := make([]string, 0, len(roster)+len(start))
	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, id := range roster {
		add(id)
	}
	extra := make([]string, 0)
	for id := range start {
		if _, ok := seen[id]; !ok {
			extra = append(extra, id)
		}
	}
	for id := range end {
		if _, ok := seen[id]; !ok {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	for _, id := range extra {
		add(id)
	}
	return ids
}

func emptyFlows() map[model.Category]Flow {
	flows := make(map[model.Category]Flow, len(model.MovementCategories))
	for _, c := range model.MovementCategories {
		flows[c] = Flow{}
	}
	return flows
}

// order places New first, then the health bands best to worst, then Lost.
func order(c model.Category) int {
	switch c {
	case model.New:
		return 0
	case model.Lost:
		return 5
	}
	if r := c.Rank(); r >= 0 {
		return 4 - r
	}
	return 6
}

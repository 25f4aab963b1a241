// Package model contains domain models passed between layers.
package model

// Hierarchy places a client under its advisory chain.
type Hierarchy struct {
	Advisor  string `json:"advisor,omitempty"`
	Manager  string `json:"manager,omitempty"`
	Mediator string `json:"mediator,omitempty"`
	TeamLead string `json:"team_lead,omitempty"`
}

// ClientRecord is a live roster entry. It is owned by the import side and is
// read-only here. Nil numeric fields mean "not provided".
type ClientRecord struct {
	ID        string    `json:"id"`
	Hierarchy Hierarchy `json:"hierarchy"`

	Satisfaction        *int `json:"satisfaction,omitempty"` // 0..10
	ReferralObserved    bool `json:"referral_observed"`
	InstallmentsOverdue *int `json:"installments_overdue,omitempty"`
	DaysOverdue         *int `json:"days_overdue,omitempty"`
	CrossSellCount      *int `json:"cross_sell_count,omitempty"`
	TenureMonths        *int `json:"tenure_months,omitempty"`

	SpouseLinked      bool   `json:"spouse_linked"`
	LinkedPayerID     string `json:"linked_payer_id,omitempty"`
	PayerTenureMonths *int   `json:"payer_tenure_months,omitempty"` // resolved from the linked payer
}

// Int returns a pointer to v, for building records with optional fields.
func Int(v int) *int { return &v }

// Grouping dimensions for aggregate series.
const (
	GroupPortfolio = "portfolio"
	GroupAdvisor   = "advisor"
	GroupManager   = "manager"
	GroupMediator  = "mediator"
	GroupTeamLead  = "team_lead"
)

// GroupKey returns the partition key of c for the given dimension. Unknown
// dimensions and empty assignments fall back to the portfolio key.
func (c ClientRecord) GroupKey(dimension string) string {
	var key string
	switch dimension {
	case GroupAdvisor:
		key = c.Hierarchy.Advisor
	case GroupManager:
		key = c.Hierarchy.Manager
	case GroupMediator:
		key = c.Hierarchy.Mediator
	case GroupTeamLead:
		key = c.Hierarchy.TeamLead
	}
	if key == "" {
		return GroupPortfolio
	}
	return dimension + ":" + key
}

// Filter narrows the roster by hierarchy assignment. Empty fields match all.
type Filter struct {
	Advisor  string `json:"advisor,omitempty"`
	Manager  string `json:"manager,omitempty"`
	Mediator string `json:"mediator,omitempty"`
	TeamLead string `json:"team_lead,omitempty"`
}

// Matches reports whether c falls under f.
func (f Filter) Matches(c ClientRecord) bool {
	return match(f.Advisor, c.Hierarchy.Advisor) &&
		match(f.Manager, c.Hierarchy.Manager) &&
		match(f.Mediator, c.Hierarchy.Mediator) &&
		match(f.TeamLead, c.Hierarchy.TeamLead)
}

// String renders f for logs and error messages.
func (f Filter) String() string {
	return "advisor=" + f.Advisor + ",manager=" + f.Manager + ",mediator=" + f.Mediator + ",team_lead=" + f.TeamLead
}

func match(want, got string) bool { return want == "" || want == got }

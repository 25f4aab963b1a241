package seed

import "time"

// Generation defaults.
const (
	defaultClients  = 500
	defaultDays     = 90
	defaultAdvisors = 12
	defaultManagers = 3
	defaultTimeout  = 30 * time.Second

	mediators = 4
	teamLeads = 2
)

// Daily drift probabilities, in percent.
const (
	satisfactionDriftPct = 6
	paymentDriftPct      = 4
	crossSellDriftPct    = 1
	referralDriftPct     = 2
	daysPerTenureMonth   = 30
)

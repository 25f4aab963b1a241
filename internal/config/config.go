// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load layers file and env on top.
// - Errors returned from Load and Validate wrap this package's sentinels.
package config

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata" // timezone names resolve on hosts without zoneinfo

	"github.com/okian/healthscore/internal/domain/model"
	"github.com/okian/healthscore/internal/domain/scoring"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite database file. Empty selects the in-memory store.
	DBPath string `koanf:"db_path"`

	// Timezone names the location every calendar date is taken in.
	Timezone string `koanf:"timezone"`

	// QueryTimeoutMS bounds the primary history query before the fallback scan runs.
	QueryTimeoutMS int `koanf:"query_timeout_ms"`

	// ScanPageSize is the page size of the fallback scan.
	ScanPageSize int `koanf:"scan_page_size"`

	// SeedLookbackDays widens every history query backwards so reconstruction
	// has a value to carry into the first requested day.
	SeedLookbackDays int `koanf:"seed_lookback_days"`

	// MaxRangeDays is the longest series range, in days, a request may ask for.
	MaxRangeDays int `koanf:"max_range_days"`

	// CacheCapacity bounds the reconstructed-series cache.
	CacheCapacity int `koanf:"cache_capacity"`

	// ScoreCacheCapacity bounds the memoized score cache.
	ScoreCacheCapacity int `koanf:"score_cache_capacity"`

	// GroupBy selects the hierarchy dimension history is grouped by.
	GroupBy string `koanf:"group_by"`

	// TrendMargin is the score delta above which a trend is not Stable.
	TrendMargin float64 `koanf:"trend_margin"`

	// PillarMateriality is the pillar delta above which a pillar is reported.
	PillarMateriality float64 `koanf:"pillar_materiality"`

	// CommitQueueSize bounds the pending snapshot commit jobs.
	CommitQueueSize int `koanf:"commit_queue_size"`

	// CommitIntervalMS schedules a snapshot commit of the live roster. Zero disables it.
	CommitIntervalMS int `koanf:"commit_interval_ms"`

	Scoring ScoringConfig `koanf:"scoring"`
}

// ScoringConfig mirrors scoring.Policy with flat, file-friendly keys.
type ScoringConfig struct {
	PromoterMin            int     `koanf:"promoter_min"`
	PassiveMin             int     `koanf:"passive_min"`
	SatisfactionPromoter   float64 `koanf:"satisfaction_promoter"`
	SatisfactionPassive    float64 `koanf:"satisfaction_passive"`
	SatisfactionDetractor  float64 `koanf:"satisfaction_detractor"`
	SatisfactionUnmeasured float64 `koanf:"satisfaction_unmeasured"`
	ReferralBonus          float64 `koanf:"referral_bonus"`
	PaymentCurrent         float64 `koanf:"payment_current"`
	PaymentOneRecent       float64 `koanf:"payment_one_recent"`
	PaymentOneLate         float64 `koanf:"payment_one_late"`
	PaymentSeveral         float64 `koanf:"payment_several"`
	LateDaysThreshold      int     `koanf:"late_days_threshold"`
	CollapseInstallments   int     `koanf:"collapse_installments"`
	CrossSellPerProduct    float64 `koanf:"cross_sell_per_product"`
	CrossSellMaxProducts   int     `koanf:"cross_sell_max_products"`
	TenureShortMonths      int     `koanf:"tenure_short_months"`
	TenureShortPoints      float64 `koanf:"tenure_short_points"`
	TenureMidMonths        int     `koanf:"tenure_mid_months"`
	TenureMidPoints        float64 `koanf:"tenure_mid_points"`
	TenureLongMonths       int     `koanf:"tenure_long_months"`
	TenureLongPoints       float64 `koanf:"tenure_long_points"`
	ExcellentMin           float64 `koanf:"excellent_min"`
	StableMin              float64 `koanf:"stable_min"`
	WarningMin             float64 `koanf:"warning_min"`
}

// New creates a Config populated with defaults.
func New() *Config {
	p := scoring.DefaultPolicy()
	return &Config{
		LogLevel:           "info",
		Addr:               ":9080",
		DBPath:             "",
		Timezone:           "UTC",
		QueryTimeoutMS:     30_000,
		ScanPageSize:       5_000,
		SeedLookbackDays:   90,
		MaxRangeDays:       3_660,
		CacheCapacity:      256,
		ScoreCacheCapacity: 100_000,
		GroupBy:            model.GroupAdvisor,
		TrendMargin:        5,
		PillarMateriality:  1,
		CommitQueueSize:    64,
		CommitIntervalMS:   0,
		Scoring:            fromPolicy(p),
	}
}

func fromPolicy(p scoring.Policy) ScoringConfig {
	sc := ScoringConfig{
		PromoterMin:            p.PromoterMin,
		PassiveMin:             p.PassiveMin,
		SatisfactionPromoter:   p.SatisfactionPromoter,
		SatisfactionPassive:    p.SatisfactionPassive,
		SatisfactionDetractor:  p.SatisfactionDetractor,
		SatisfactionUnmeasured: p.SatisfactionUnmeasured,
		ReferralBonus:          p.ReferralBonus,
		PaymentCurrent:         p.PaymentCurrent,
		PaymentOneRecent:       p.PaymentOneRecent,
		PaymentOneLate:         p.PaymentOneLate,
		PaymentSeveral:         p.PaymentSeveral,
		LateDaysThreshold:      p.LateDaysThreshold,
		CollapseInstallments:   p.CollapseInstallments,
		CrossSellPerProduct:    p.CrossSellPerProduct,
		CrossSellMaxProducts:   p.CrossSellMaxProducts,
		ExcellentMin:           p.ExcellentMin,
		StableMin:              p.StableMin,
		WarningMin:             p.WarningMin,
	}
	if len(p.TenureSteps) == 3 {
		sc.TenureShortMonths, sc.TenureShortPoints = p.TenureSteps[0].Min, p.TenureSteps[0].Points
		sc.TenureMidMonths, sc.TenureMidPoints = p.TenureSteps[1].Min, p.TenureSteps[1].Points
		sc.TenureLongMonths, sc.TenureLongPoints = p.TenureSteps[2].Min, p.TenureSteps[2].Points
	}
	return sc
}

// Policy converts the scoring block into a scoring.Policy.
func (s ScoringConfig) Policy() scoring.Policy {
	return scoring.Policy{
		PromoterMin:            s.PromoterMin,
		PassiveMin:             s.PassiveMin,
		SatisfactionPromoter:   s.SatisfactionPromoter,
		SatisfactionPassive:    s.SatisfactionPassive,
		SatisfactionDetractor:  s.SatisfactionDetractor,
		SatisfactionUnmeasured: s.SatisfactionUnmeasured,
		ReferralBonus:          s.ReferralBonus,
		PaymentCurrent:         s.PaymentCurrent,
		PaymentOneRecent:       s.PaymentOneRecent,
		PaymentOneLate:         s.PaymentOneLate,
		PaymentSeveral:         s.PaymentSeveral,
		LateDaysThreshold:      s.LateDaysThreshold,
		CollapseInstallments:   s.CollapseInstallments,
		CrossSellPerProduct:    s.CrossSellPerProduct,
		CrossSellMaxProducts:   s.CrossSellMaxProducts,
		TenureSteps: []scoring.Step{
			{Min: s.TenureShortMonths, Points: s.TenureShortPoints},
			{Min: s.TenureMidMonths, Points: s.TenureMidPoints},
			{Min: s.TenureLongMonths, Points: s.TenureLongPoints},
		},
		ExcellentMin: s.ExcellentMin,
		StableMin:    s.StableMin,
		WarningMin:   s.WarningMin,
	}
}

// QueryTimeout returns QueryTimeoutMS as a duration.
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutMS) * time.Millisecond
}

// CommitInterval returns CommitIntervalMS as a duration.
func (c *Config) CommitInterval() time.Duration {
	return time.Duration(c.CommitIntervalMS) * time.Millisecond
}

// Location loads the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, &FieldError{Key: "timezone", Reason: fmt.Sprintf("cannot load %q", c.Timezone), Err: err}
	}
	return loc, nil
}

// Validate checks the configuration for values the service cannot run with.
// Every rejected key is reported, joined into one error.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, invalid("addr", "must not be empty"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if c.QueryTimeoutMS <= 0 {
		errs = append(errs, invalid("query_timeout_ms", "must be positive, got %d", c.QueryTimeoutMS))
	}
	if c.ScanPageSize <= 0 {
		errs = append(errs, invalid("scan_page_size", "must be positive, got %d", c.ScanPageSize))
	}
	if c.SeedLookbackDays < 0 {
		errs = append(errs, invalid("seed_lookback_days", "must not be negative, got %d", c.SeedLookbackDays))
	}
	if c.MaxRangeDays <= 0 {
		errs = append(errs, invalid("max_range_days", "must be positive, got %d", c.MaxRangeDays))
	}
	switch c.GroupBy {
	case model.GroupPortfolio, model.GroupAdvisor, model.GroupManager, model.GroupMediator, model.GroupTeamLead:
	default:
		errs = append(errs, invalid("group_by", "unknown dimension %q", c.GroupBy))
	}
	if c.CommitQueueSize <= 0 {
		errs = append(errs, invalid("commit_queue_size", "must be positive, got %d", c.CommitQueueSize))
	}
	if c.CommitIntervalMS < 0 {
		errs = append(errs, invalid("commit_interval_ms", "must not be negative, got %d", c.CommitIntervalMS))
	}
	if c.TrendMargin < 0 {
		errs = append(errs, invalid("trend_margin", "must not be negative, got %g", c.TrendMargin))
	}
	if c.PillarMateriality < 0 {
		errs = append(errs, invalid("pillar_materiality", "must not be negative, got %g", c.PillarMateriality))
	}
	if err := c.Scoring.Policy().Validate(); err != nil {
		errs = append(errs, &FieldError{Key: "scoring", Reason: "inconsistent policy", Err: err})
	}
	return errors.Join(errs...)
}

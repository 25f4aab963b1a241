// Package calendar provides calendar dates (no time-of-day) under a single
// process-wide location. Every date comparison in the domain goes through
// this package so map keys built from dates stay consistent.
package calendar

import (
	"fmt"
	"sync/atomic"
	"time"
)

const layout = "2006-01-02"

var location atomic.Pointer[time.Location]

func init() { //nolint:gochecknoinits // process-wide default location
	location.Store(time.UTC)
}

// SetLocation installs the process-wide location used by Of and Today.
func SetLocation(loc *time.Location) {
	if loc != nil {
		location.Store(loc)
	}
}

// Location returns the process-wide location.
func Location() *time.Location { return location.Load() }

// Date is a calendar day. The zero value is not a valid date.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// New builds a normalized Date (e.g. Jan 32 becomes Feb 1).
func New(year int, month time.Month, day int) Date {
	return Of(time.Date(year, month, day, 12, 0, 0, 0, Location()))
}

// Of converts t into the process-wide location and strips the time of day.
func Of(t time.Time) Date {
	y, m, d := t.In(Location()).Date()
	return Date{Year: y, Month: m, Day: d}
}

// Today returns the current wall-clock date.
func Today() Date { return Of(time.Now()) }

// Parse reads a YYYY-MM-DD date.
func Parse(s string) (Date, error) {
	t, err := time.ParseInLocation(layout, s, Location())
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Of(t), nil
}

// IsZero reports whether d is the zero value.
func (d Date) IsZero() bool { return d == Date{} }

// Time returns midnight of d in the process-wide location.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, Location())
}

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date {
	// noon avoids DST edges landing on the previous day
	return Of(time.Date(d.Year, d.Month, d.Day+n, 12, 0, 0, 0, Location()))
}

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }

// After reports whether d is strictly later than o.
func (d Date) After(o Date) bool { return d.Compare(o) > 0 }

// Compare returns -1, 0 or 1.
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return sign(d.Year - o.Year)
	case d.Month != o.Month:
		return sign(int(d.Month) - int(o.Month))
	default:
		return sign(d.Day - o.Day)
	}
}

// DaysUntil returns the number of days from d to o (negative if o is earlier).
func (d Date) DaysUntil(o Date) int {
	a := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	b := time.Date(o.Year, o.Month, o.Day, 0, 0, 0, 0, time.UTC)
	return int((b.Unix() - a.Unix()) / 86_400)
}

// String formats d as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func sign(x int) int {
	switch {
	case x < 0:
		return -1
	case x > 0:
		return 1
	}
	return 0
}

// Range is an inclusive span of days.
type Range struct {
	From Date `json:"from"`
	To   Date `json:"to"`
}

// Normalize swaps inverted bounds.
func (r Range) Normalize() Range {
	if r.From.After(r.To) {
		return Range{From: r.To, To: r.From}
	}
	return r
}

// Days returns the number of days in the normalized range, inclusive.
func (r Range) Days() int {
	n := r.Normalize()
	return n.From.DaysUntil(n.To) + 1
}

// Contains reports whether d falls within the normalized range.
func (r Range) Contains(d Date) bool {
	n := r.Normalize()
	return !d.Before(n.From) && !d.After(n.To)
}

func (r Range) String() string { return r.From.String() + ".." + r.To.String() }

package models

import "time"

// RateTable maps ISO currency codes to rates relative to the base currency.
type RateTable map[string]float64

// RateSnapshot is one calendar period's exchange-rate table. At most one
// snapshot exists per (base, period) in steady state; the upsert is
// idempotent so a concurrent first-of-period fetch race is benign.
type RateSnapshot struct {
	BaseCurrency string    `db:"base_currency" json:"baseCurrency"`
	PeriodKey    string    `db:"period_key" json:"periodKey"`
	Rates        RateTable `json:"rates"`
	FetchedAt    time.Time `db:"fetched_at" json:"fetchedAt"`
}

// PeriodKey returns the calendar-month cache key for the given time,
// e.g. "2026-08-01".
func PeriodKey(now time.Time) string {
	return now.UTC().Format("2006-01") + "-01"
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Frequency is the cadence of a price subscription digest.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Valid reports whether the frequency is one of the supported cadences.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// Condition is the direction of a price alert threshold.
type Condition string

const (
	// ConditionGTE fires when the observed price reaches or exceeds the target.
	ConditionGTE Condition = "gte"
	// ConditionLTE fires when the observed price reaches or falls below the target.
	ConditionLTE Condition = "lte"
)

// Valid reports whether the condition is a supported comparison.
func (c Condition) Valid() bool {
	return c == ConditionGTE || c == ConditionLTE
}

// AlertStatus tracks whether an alert is still armed.
type AlertStatus string

const (
	AlertActive    AlertStatus = "active"
	AlertTriggered AlertStatus = "triggered"
)

// CurrencyRecord is the latest observed snapshot for one market symbol.
// Records are overwritten in place on every ingestion tick; no history is kept.
type CurrencyRecord struct {
	Symbol        string          `db:"symbol"`
	EnglishName   string          `db:"en_name"`
	LocalizedName string          `db:"localized_name"`
	Price         decimal.Decimal `db:"price"`
	Change24h     string          `db:"change_24h"`
	Volume24h     string          `db:"volume_24h"`
	LastUpdate    time.Time       `db:"last_update"`
}

// Subscription is a recurring price digest for one (user, symbol) pair.
type Subscription struct {
	ID         int64     `db:"id"`
	UserID     int64     `db:"user_id"`
	Symbol     string    `db:"symbol"`
	Frequency  Frequency `db:"frequency"`
	CreatedAt  time.Time `db:"created_at"`
	LastUpdate time.Time `db:"last_update"`
}

// Alert is a one-shot threshold notification for one (user, symbol) pair.
// Re-registering the same pair re-arms the alert and overwrites its target.
type Alert struct {
	ID         int64           `db:"id"`
	UserID     int64           `db:"user_id"`
	Symbol     string          `db:"symbol"`
	Target     decimal.Decimal `db:"target_price"`
	Condition  Condition       `db:"condition"`
	Status     AlertStatus     `db:"status"`
	CreatedAt  time.Time       `db:"created_at"`
	LastUpdate time.Time       `db:"last_update"`
}

// Triggered reports whether the given price satisfies the alert threshold.
// Boundary equality counts as triggered for both directions.
func (a Alert) Triggered(price decimal.Decimal) bool {
	switch a.Condition {
	case ConditionGTE:
		return price.GreaterThanOrEqual(a.Target)
	case ConditionLTE:
		return price.LessThanOrEqual(a.Target)
	}
	return false
}

// TriggeredAlert pairs an alert with the price observation that matched it.
type TriggeredAlert struct {
	Alert
	Price decimal.Decimal `db:"current_price"`
}

// User is a chat user profile with first/last-seen bookkeeping.
type User struct {
	ID        int64     `db:"id"`
	FirstName string    `db:"first_name"`
	LastName  *string   `db:"last_name"`
	Username  *string   `db:"username"`
	FirstSeen time.Time `db:"first_seen"`
	LastSeen  time.Time `db:"last_seen"`
}

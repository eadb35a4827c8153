// Package storage implements the four persisted collections on PostgreSQL:
// prices keyed by symbol, users keyed by Telegram id, and subscriptions and
// alerts keyed by store-generated ids unique per (user, symbol).
package storage

import "github.com/jmoiron/sqlx"

// Store bundles the repositories over a shared connection pool.
type Store struct {
	Prices        *PriceRepo
	Users         *UserRepo
	Subscriptions *SubscriptionRepo
	Alerts        *AlertRepo
}

// New wires all repositories onto the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{
		Prices:        &PriceRepo{db: db},
		Users:         &UserRepo{db: db},
		Subscriptions: &SubscriptionRepo{db: db},
		Alerts:        &AlertRepo{db: db},
	}
}

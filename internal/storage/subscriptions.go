package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"log/slog"

	"github.com/m3rciful/pricebot/core/logger"
	"github.com/m3rciful/pricebot/internal/domain"
)

// SubscriptionRepo persists recurring price digests.
type SubscriptionRepo struct {
	db *sqlx.DB
}

// Upsert creates or replaces the subscription for (user, symbol).
// Re-subscribing the same pair overwrites the frequency.
func (r *SubscriptionRepo) Upsert(ctx context.Context, userID int64, symbol string, freq domain.Frequency) error {
	const query = `
		INSERT INTO subscriptions (user_id, symbol, frequency, created_at, last_update)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (user_id, symbol) DO UPDATE SET
			frequency = EXCLUDED.frequency,
			last_update = now()`

	if _, err := r.db.ExecContext(ctx, query, userID, symbol, freq); err != nil {
		logger.SVCSubs.Error("subscription upsert failed",
			slog.String("event", "subscriptions.upsert"),
			slog.Int64("user_id", userID),
			slog.String("symbol", symbol),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("upsert subscription %d/%s: %w", userID, symbol, err)
	}
	logger.SVCSubs.Info("subscription saved",
		slog.String("event", "subscriptions.upsert"),
		slog.Int64("user_id", userID),
		slog.String("symbol", symbol),
		slog.String("frequency", string(freq)),
	)
	return nil
}

// ListByUser returns the user's subscriptions ordered by symbol.
func (r *SubscriptionRepo) ListByUser(ctx context.Context, userID int64) ([]domain.Subscription, error) {
	const query = `SELECT id, user_id, symbol, frequency, created_at, last_update
		FROM subscriptions WHERE user_id = $1 ORDER BY symbol`

	var subs []domain.Subscription
	if err := r.db.SelectContext(ctx, &subs, query, userID); err != nil {
		return nil, fmt.Errorf("list subscriptions for user %d: %w", userID, err)
	}
	return subs, nil
}

// ListByFrequency returns every subscription with the given cadence.
func (r *SubscriptionRepo) ListByFrequency(ctx context.Context, freq domain.Frequency) ([]domain.Subscription, error) {
	const query = `SELECT id, user_id, symbol, frequency, created_at, last_update
		FROM subscriptions WHERE frequency = $1 ORDER BY id`

	var subs []domain.Subscription
	if err := r.db.SelectContext(ctx, &subs, query, freq); err != nil {
		return nil, fmt.Errorf("list %s subscriptions: %w", freq, err)
	}
	return subs, nil
}

// Delete removes the user's subscription by id and reports whether a row
// existed. The user guard keeps a forged callback payload from touching
// another user's row.
func (r *SubscriptionRepo) Delete(ctx context.Context, userID, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete subscription %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete subscription %d: %w", id, err)
	}
	return n > 0, nil
}

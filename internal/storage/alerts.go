package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"log/slog"

	"github.com/m3rciful/pricebot/core/logger"
	"github.com/m3rciful/pricebot/internal/domain"
)

// AlertRepo persists one-shot threshold alerts.
type AlertRepo struct {
	db *sqlx.DB
}

// Upsert creates or replaces the alert for (user, symbol). Re-registering the
// same pair re-arms the alert: status resets to active and the target and
// condition are overwritten.
func (r *AlertRepo) Upsert(ctx context.Context, userID int64, symbol string, target decimal.Decimal, cond domain.Condition) error {
	const query = `
		INSERT INTO alerts (user_id, symbol, target_price, condition, status, created_at, last_update)
		VALUES ($1, $2, $3, $4, 'active', now(), now())
		ON CONFLICT (user_id, symbol) DO UPDATE SET
			target_price = EXCLUDED.target_price,
			condition = EXCLUDED.condition,
			status = 'active',
			last_update = now()`

	if _, err := r.db.ExecContext(ctx, query, userID, symbol, target, cond); err != nil {
		logger.SVCAlerts.Error("alert upsert failed",
			slog.String("event", "alerts.upsert"),
			slog.Int64("user_id", userID),
			slog.String("symbol", symbol),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("upsert alert %d/%s: %w", userID, symbol, err)
	}
	logger.SVCAlerts.Info("alert saved",
		slog.String("event", "alerts.upsert"),
		slog.Int64("user_id", userID),
		slog.String("symbol", symbol),
		slog.String("condition", string(cond)),
		slog.String("target", target.String()),
	)
	return nil
}

// ListByUser returns the user's alerts ordered by symbol.
func (r *AlertRepo) ListByUser(ctx context.Context, userID int64) ([]domain.Alert, error) {
	const query = `SELECT id, user_id, symbol, target_price, condition, status, created_at, last_update
		FROM alerts WHERE user_id = $1 ORDER BY symbol`

	var alerts []domain.Alert
	if err := r.db.SelectContext(ctx, &alerts, query, userID); err != nil {
		return nil, fmt.Errorf("list alerts for user %d: %w", userID, err)
	}
	return alerts, nil
}

// ListTriggered joins active alerts against the current prices and returns
// those whose threshold is satisfied. Boundary equality counts as satisfied.
func (r *AlertRepo) ListTriggered(ctx context.Context) ([]domain.TriggeredAlert, error) {
	const query = `
		SELECT a.id, a.user_id, a.symbol, a.target_price, a.condition, a.status,
		       a.created_at, a.last_update, p.price AS current_price
		FROM alerts a
		JOIN prices p ON p.symbol = a.symbol
		WHERE a.status = 'active'
		  AND ((a.condition = 'gte' AND p.price >= a.target_price)
		    OR (a.condition = 'lte' AND p.price <= a.target_price))
		ORDER BY a.id`

	var matched []domain.TriggeredAlert
	if err := r.db.SelectContext(ctx, &matched, query); err != nil {
		return nil, fmt.Errorf("list triggered alerts: %w", err)
	}
	return matched, nil
}

// MarkTriggered flips the alert from active to triggered. The update is
// conditional on the alert still being active, so for any number of
// concurrent callers exactly one observes true.
func (r *AlertRepo) MarkTriggered(ctx context.Context, id int64) (bool, error) {
	const query = `UPDATE alerts SET status = 'triggered', last_update = now()
		WHERE id = $1 AND status = 'active'`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("mark alert %d triggered: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark alert %d triggered: %w", id, err)
	}
	return n > 0, nil
}

// Delete removes the user's alert by id and reports whether a row existed.
// The user guard keeps a forged callback payload from touching another
// user's row.
func (r *AlertRepo) Delete(ctx context.Context, userID, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete alert %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete alert %d: %w", id, err)
	}
	return n > 0, nil
}

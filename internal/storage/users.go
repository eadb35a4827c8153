package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"log/slog"

	"github.com/m3rciful/pricebot/core/logger"
	"github.com/m3rciful/pricebot/internal/domain"
)

// UserRepo persists chat user profiles.
type UserRepo struct {
	db *sqlx.DB
}

// Upsert records the profile, setting first_seen only on insert and
// refreshing last_seen on every call.
func (r *UserRepo) Upsert(ctx context.Context, u domain.User) error {
	const query = `
		INSERT INTO users (id, first_name, last_name, username, first_seen, last_seen)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			username = EXCLUDED.username,
			last_seen = now()`

	if _, err := r.db.ExecContext(ctx, query, u.ID, u.FirstName, u.LastName, u.Username); err != nil {
		logger.SVCUsers.Error("user upsert failed",
			slog.String("event", "users.upsert"),
			slog.Int64("user_id", u.ID),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("upsert user %d: %w", u.ID, err)
	}
	return nil
}

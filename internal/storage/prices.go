package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"log/slog"

	"github.com/m3rciful/pricebot/core/logger"
	"github.com/m3rciful/pricebot/internal/domain"
)

// PriceRepo persists the latest market snapshot per symbol.
type PriceRepo struct {
	db *sqlx.DB
}

// Upsert overwrites the record for the symbol with last-write-wins semantics,
// stamping it with the ingestion time.
func (r *PriceRepo) Upsert(ctx context.Context, rec domain.CurrencyRecord) error {
	const query = `
		INSERT INTO prices (symbol, en_name, localized_name, price, change_24h, volume_24h, last_update)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol) DO UPDATE SET
			en_name = EXCLUDED.en_name,
			localized_name = EXCLUDED.localized_name,
			price = EXCLUDED.price,
			change_24h = EXCLUDED.change_24h,
			volume_24h = EXCLUDED.volume_24h,
			last_update = EXCLUDED.last_update`

	if rec.LastUpdate.IsZero() {
		rec.LastUpdate = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, query,
		rec.Symbol, rec.EnglishName, rec.LocalizedName,
		rec.Price, rec.Change24h, rec.Volume24h, rec.LastUpdate,
	)
	if err != nil {
		logger.SVCPrices.Error("price upsert failed",
			slog.String("event", "prices.upsert"),
			slog.String("symbol", rec.Symbol),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("upsert price %s: %w", rec.Symbol, err)
	}
	return nil
}

// GetBySymbol fetches a record by exact symbol. A missing symbol is a normal
// (zero, false) outcome, not an error.
func (r *PriceRepo) GetBySymbol(ctx context.Context, symbol string) (domain.CurrencyRecord, bool, error) {
	const query = `SELECT symbol, en_name, localized_name, price, change_24h, volume_24h, last_update
		FROM prices WHERE symbol = $1`

	var rec domain.CurrencyRecord
	err := r.db.GetContext(ctx, &rec, query, symbol)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CurrencyRecord{}, false, nil
	}
	if err != nil {
		return domain.CurrencyRecord{}, false, fmt.Errorf("get price %s: %w", symbol, err)
	}
	return rec, true, nil
}

// List returns every stored record, ordered by symbol.
func (r *PriceRepo) List(ctx context.Context) ([]domain.CurrencyRecord, error) {
	const query = `SELECT symbol, en_name, localized_name, price, change_24h, volume_24h, last_update
		FROM prices ORDER BY symbol`

	var recs []domain.CurrencyRecord
	if err := r.db.SelectContext(ctx, &recs, query); err != nil {
		return nil, fmt.Errorf("list prices: %w", err)
	}
	return recs, nil
}

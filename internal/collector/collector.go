// Package collector runs the two background jobs: the short-interval price
// ingestion / alert matching tick and the once-daily subscription digest.
// The jobs own no shared in-process state; they coordinate only through the
// store.
package collector

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"github.com/m3rciful/pricebot/core/logger"
	"github.com/m3rciful/pricebot/internal/domain"
	"github.com/m3rciful/pricebot/internal/feed"
	"github.com/m3rciful/pricebot/internal/notify"
)

// Feed supplies one market snapshot per tick.
type Feed interface {
	Snapshot(ctx context.Context) ([]feed.Entry, error)
}

// PriceStore is the slice of the price repository the jobs need.
type PriceStore interface {
	Upsert(ctx context.Context, rec domain.CurrencyRecord) error
	GetBySymbol(ctx context.Context, symbol string) (domain.CurrencyRecord, bool, error)
}

// AlertStore matches and commits threshold alerts.
type AlertStore interface {
	ListTriggered(ctx context.Context) ([]domain.TriggeredAlert, error)
	MarkTriggered(ctx context.Context, id int64) (bool, error)
}

// SubscriptionStore selects digest recipients per cadence.
type SubscriptionStore interface {
	ListByFrequency(ctx context.Context, freq domain.Frequency) ([]domain.Subscription, error)
}

// Collector implements the price ingestion and alert match engine.
type Collector struct {
	feed   Feed
	prices PriceStore
	alerts AlertStore
	sink   notify.Sink
	now    func() time.Time
}

// New builds a collector over the given collaborators.
func New(f Feed, prices PriceStore, alerts AlertStore, sink notify.Sink) *Collector {
	return &Collector{
		feed:   f,
		prices: prices,
		alerts: alerts,
		sink:   sink,
		now:    time.Now,
	}
}

// Tick runs one ingestion/match cycle: fetch a snapshot, upsert every entry
// that carries a price, then fire whatever alerts the fresh prices satisfy.
// A fetch failure aborts the whole tick and leaves prior records intact.
func (c *Collector) Tick(ctx context.Context) error {
	start := c.now()

	entries, err := c.feed.Snapshot(ctx)
	if err != nil {
		logger.COLLECT.Error("snapshot fetch failed",
			slog.String("event", "collector.tick"),
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("collector: %w", err)
	}

	updated, skipped := c.ingest(ctx, entries)
	fired := c.fireAlerts(ctx)

	logger.COLLECT.Info("tick complete",
		slog.String("event", "collector.tick"),
		slog.String("status", "ok"),
		slog.Int("updated", updated),
		slog.Int("skipped", skipped),
		slog.Int("triggered", fired),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return nil
}

// ingest upserts each priced entry with last-write-wins semantics. Entries
// without a price are skipped and logged; a storage failure on one symbol
// does not stop the rest of the batch.
func (c *Collector) ingest(ctx context.Context, entries []feed.Entry) (updated, skipped int) {
	stamp := c.now().UTC()
	for _, e := range entries {
		if e.Price == nil {
			logger.COLLECT.Warn("entry without price skipped",
				slog.String("event", "collector.ingest"),
				slog.String("symbol", e.Symbol),
			)
			skipped++
			continue
		}
		rec := domain.CurrencyRecord{
			Symbol:        e.Symbol,
			EnglishName:   e.EnglishName,
			LocalizedName: e.LocalizedName,
			Price:         *e.Price,
			Change24h:     e.Change24h,
			Volume24h:     e.Volume24h,
			LastUpdate:    stamp,
		}
		if err := c.prices.Upsert(ctx, rec); err != nil {
			logger.COLLECT.Error("price upsert failed",
				slog.String("event", "collector.ingest"),
				slog.String("symbol", e.Symbol),
				slog.String("err", err.Error()),
			)
			continue
		}
		updated++
	}
	return updated, skipped
}

// fireAlerts selects every active alert whose threshold the current price
// satisfies and fires each at most once. The conditional status flip is the
// commit point: of any number of concurrent ticks observing the same match,
// only the one that wins the flip emits the notification. A crash after the
// flip but before delivery loses that one notification; the alert is never
// retried.
func (c *Collector) fireAlerts(ctx context.Context) int {
	matched, err := c.alerts.ListTriggered(ctx)
	if err != nil {
		logger.COLLECT.Error("alert match failed",
			slog.String("event", "collector.alerts"),
			slog.String("err", err.Error()),
		)
		return 0
	}

	fired := 0
	for _, m := range matched {
		won, err := c.alerts.MarkTriggered(ctx, m.ID)
		if err != nil {
			logger.COLLECT.Error("alert commit failed",
				slog.String("event", "collector.alerts"),
				slog.Int64("alert_id", m.ID),
				slog.String("err", err.Error()),
			)
			continue
		}
		if !won {
			// another tick fired this alert first
			continue
		}
		fired++

		text := alertText(m)
		if err := c.sink.SendText(ctx, m.UserID, text); err != nil {
			if notify.Permanent(err) {
				logger.COLLECT.Warn("recipient unreachable",
					slog.String("event", "collector.notify"),
					slog.Int64("alert_id", m.ID),
					slog.Int64("user_id", m.UserID),
					slog.String("err", err.Error()),
				)
			} else {
				logger.COLLECT.Error("alert delivery failed",
					slog.String("event", "collector.notify"),
					slog.Int64("alert_id", m.ID),
					slog.Int64("user_id", m.UserID),
					slog.String("err", err.Error()),
				)
			}
			// status change stands either way; the alert is spent
			continue
		}
	}
	return fired
}

func alertText(m domain.TriggeredAlert) string {
	direction := "reached"
	if m.Condition == domain.ConditionLTE {
		direction = "dropped to"
	}
	return fmt.Sprintf("🎯 Price alert!\n%s %s your target of %s (current price: %s).",
		m.Symbol, direction, m.Target.String(), m.Price.String())
}

package collector

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"github.com/m3rciful/pricebot/core/logger"
	"github.com/m3rciful/pricebot/internal/domain"
	"github.com/m3rciful/pricebot/internal/notify"
)

// Digest sends the recurring subscription summaries. It shares the price
// store and notification sink with the collector but runs on its own
// schedule.
type Digest struct {
	prices    PriceStore
	subs      SubscriptionStore
	sink      notify.Sink
	weekStart time.Weekday
}

// NewDigest builds a digest dispatcher. weekStart controls which weekday
// counts as the start of the week for the weekly cadence.
func NewDigest(prices PriceStore, subs SubscriptionStore, sink notify.Sink, weekStart time.Weekday) *Digest {
	return &Digest{
		prices:    prices,
		subs:      subs,
		sink:      sink,
		weekStart: weekStart,
	}
}

// cadences returns the digest frequencies due at the given instant. The
// daily digest is always due; weekly fires on the configured week start and
// monthly on the first day of the month, all stacked on the same run.
func (d *Digest) cadences(now time.Time) []domain.Frequency {
	due := []domain.Frequency{domain.FrequencyDaily}
	if now.Weekday() == d.weekStart {
		due = append(due, domain.FrequencyWeekly)
	}
	if now.Day() == 1 {
		due = append(due, domain.FrequencyMonthly)
	}
	return due
}

// Run dispatches every digest due at the given instant. Each subscription is
// handled independently: a missing price record or a failed delivery is
// logged and skipped without affecting the rest.
func (d *Digest) Run(ctx context.Context, now time.Time) {
	start := time.Now()
	sent, skipped := 0, 0

	for _, freq := range d.cadences(now) {
		subs, err := d.subs.ListByFrequency(ctx, freq)
		if err != nil {
			logger.DIGEST.Error("subscription lookup failed",
				slog.String("event", "digest.run"),
				slog.String("frequency", string(freq)),
				slog.String("err", err.Error()),
			)
			continue
		}
		for _, sub := range subs {
			if d.dispatch(ctx, freq, sub) {
				sent++
			} else {
				skipped++
			}
		}
	}

	logger.DIGEST.Info("digest complete",
		slog.String("event", "digest.run"),
		slog.String("status", "ok"),
		slog.Int("sent", sent),
		slog.Int("skipped", skipped),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
}

func (d *Digest) dispatch(ctx context.Context, freq domain.Frequency, sub domain.Subscription) bool {
	rec, ok, err := d.prices.GetBySymbol(ctx, sub.Symbol)
	if err != nil {
		logger.DIGEST.Error("price lookup failed",
			slog.String("event", "digest.dispatch"),
			slog.String("symbol", sub.Symbol),
			slog.String("err", err.Error()),
		)
		return false
	}
	if !ok {
		logger.DIGEST.Warn("no price record for subscription",
			slog.String("event", "digest.dispatch"),
			slog.String("symbol", sub.Symbol),
			slog.Int64("subscription_id", sub.ID),
		)
		return false
	}

	if err := d.sink.SendText(ctx, sub.UserID, digestText(freq, rec)); err != nil {
		level := logger.DIGEST.Error
		if notify.Permanent(err) {
			level = logger.DIGEST.Warn
		}
		level("digest delivery failed",
			slog.String("event", "digest.dispatch"),
			slog.String("symbol", sub.Symbol),
			slog.Int64("user_id", sub.UserID),
			slog.String("err", err.Error()),
		)
		return false
	}
	return true
}

func digestText(freq domain.Frequency, rec domain.CurrencyRecord) string {
	var label string
	switch freq {
	case domain.FrequencyWeekly:
		label = "Weekly digest"
	case domain.FrequencyMonthly:
		label = "Monthly digest"
	default:
		label = "Daily digest"
	}
	return fmt.Sprintf("📬 %s\n%s (%s)\nPrice: %s\n24h change: %s\n24h volume: %s",
		label, rec.EnglishName, rec.Symbol, rec.Price.String(), rec.Change24h, rec.Volume24h)
}

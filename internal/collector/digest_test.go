package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/pricebot/internal/domain"
)

type memSubs struct {
	mu      sync.Mutex
	subs    []domain.Subscription
	queried []domain.Frequency
}

func (m *memSubs) ListByFrequency(_ context.Context, freq domain.Frequency) ([]domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queried = append(m.queried, freq)
	var out []domain.Subscription
	for _, s := range m.subs {
		if s.Frequency == freq {
			out = append(out, s)
		}
	}
	return out, nil
}

func seededPrices(t *testing.T, symbols ...string) *memPrices {
	t.Helper()
	prices := newMemPrices()
	for _, sym := range symbols {
		rec := domain.CurrencyRecord{Symbol: sym, EnglishName: sym, Price: decimal.NewFromInt(1000)}
		require.NoError(t, prices.Upsert(context.Background(), rec))
	}
	return prices
}

// 2025-11-01 is a Saturday and the first day of the month, so every cadence
// is due at once.
var saturdayFirst = time.Date(2025, time.November, 1, 9, 0, 0, 0, time.UTC)

func TestDigestCadenceSelection(t *testing.T) {
	cases := []struct {
		name string
		now  time.Time
		want []domain.Frequency
	}{
		{"plain weekday", time.Date(2025, time.November, 3, 9, 0, 0, 0, time.UTC),
			[]domain.Frequency{domain.FrequencyDaily}},
		{"week start", time.Date(2025, time.November, 8, 9, 0, 0, 0, time.UTC),
			[]domain.Frequency{domain.FrequencyDaily, domain.FrequencyWeekly}},
		{"first of month", time.Date(2025, time.December, 1, 9, 0, 0, 0, time.UTC),
			[]domain.Frequency{domain.FrequencyDaily, domain.FrequencyMonthly}},
		{"week start on the first", saturdayFirst,
			[]domain.Frequency{domain.FrequencyDaily, domain.FrequencyWeekly, domain.FrequencyMonthly}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			subs := &memSubs{}
			d := NewDigest(newMemPrices(), subs, newRecordSink(), time.Saturday)
			d.Run(context.Background(), tc.now)
			assert.Equal(t, tc.want, subs.queried)
		})
	}
}

func TestDigestDeliversPerSubscription(t *testing.T) {
	subs := &memSubs{subs: []domain.Subscription{
		{ID: 1, UserID: 10, Symbol: "BTC", Frequency: domain.FrequencyDaily},
		{ID: 2, UserID: 20, Symbol: "ETH", Frequency: domain.FrequencyWeekly},
		{ID: 3, UserID: 30, Symbol: "BTC", Frequency: domain.FrequencyMonthly},
	}}
	sink := newRecordSink()
	d := NewDigest(seededPrices(t, "BTC", "ETH"), subs, sink, time.Saturday)

	d.Run(context.Background(), saturdayFirst)

	require.Equal(t, 3, sink.count())
	assert.ElementsMatch(t, []int64{10, 20, 30}, sink.to)
}

func TestDigestSkipsMissingRecordAndFailedDelivery(t *testing.T) {
	subs := &memSubs{subs: []domain.Subscription{
		{ID: 1, UserID: 10, Symbol: "BTC", Frequency: domain.FrequencyDaily},
		{ID: 2, UserID: 20, Symbol: "GONE", Frequency: domain.FrequencyDaily},
		{ID: 3, UserID: 30, Symbol: "BTC", Frequency: domain.FrequencyDaily},
	}}
	sink := newRecordSink()
	sink.fail[10] = errors.New("forbidden: bot was blocked by the user")
	d := NewDigest(seededPrices(t, "BTC"), subs, sink, time.Saturday)

	d.Run(context.Background(), time.Date(2025, time.November, 3, 9, 0, 0, 0, time.UTC))

	require.Equal(t, 1, sink.count(), "one skip never aborts the rest of the batch")
	assert.Equal(t, []int64{30}, sink.to)
}

package collector

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/pricebot/core/logger"
	"github.com/m3rciful/pricebot/internal/domain"
	"github.com/m3rciful/pricebot/internal/feed"
)

func TestMain(m *testing.M) {
	_ = logger.InitLogger(nil)
	os.Exit(m.Run())
}

type fakeFeed struct {
	entries []feed.Entry
	err     error
}

func (f *fakeFeed) Snapshot(_ context.Context) ([]feed.Entry, error) {
	return f.entries, f.err
}

type memPrices struct {
	mu   sync.Mutex
	recs map[string]domain.CurrencyRecord
}

func newMemPrices() *memPrices {
	return &memPrices{recs: make(map[string]domain.CurrencyRecord)}
}

func (m *memPrices) Upsert(_ context.Context, rec domain.CurrencyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[rec.Symbol] = rec
	return nil
}

func (m *memPrices) GetBySymbol(_ context.Context, symbol string) (domain.CurrencyRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[symbol]
	return rec, ok, nil
}

type memAlerts struct {
	mu      sync.Mutex
	matched []domain.TriggeredAlert
	status  map[int64]domain.AlertStatus
}

func newMemAlerts(matched ...domain.TriggeredAlert) *memAlerts {
	m := &memAlerts{matched: matched, status: make(map[int64]domain.AlertStatus)}
	for _, a := range matched {
		m.status[a.ID] = domain.AlertActive
	}
	return m
}

func (m *memAlerts) ListTriggered(_ context.Context) ([]domain.TriggeredAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TriggeredAlert
	for _, a := range m.matched {
		if m.status[a.ID] == domain.AlertActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memAlerts) MarkTriggered(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status[id] != domain.AlertActive {
		return false, nil
	}
	m.status[id] = domain.AlertTriggered
	return true, nil
}

type recordSink struct {
	mu   sync.Mutex
	sent []string
	to   []int64
	fail map[int64]error
}

func newRecordSink() *recordSink {
	return &recordSink{fail: make(map[int64]error)}
}

func (s *recordSink) SendText(_ context.Context, recipientID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.fail[recipientID]; ok {
		return err
	}
	s.sent = append(s.sent, text)
	s.to = append(s.to, recipientID)
	return nil
}

func (s *recordSink) EditText(_ context.Context, _ int64, _ int, _ string) error {
	return nil
}

func (s *recordSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func priced(symbol string, price int64) feed.Entry {
	p := decimal.NewFromInt(price)
	return feed.Entry{Symbol: symbol, EnglishName: symbol, Price: &p}
}

func TestTickIngestsPricedEntriesOnly(t *testing.T) {
	prices := newMemPrices()
	f := &fakeFeed{entries: []feed.Entry{
		priced("BTC", 4500000),
		{Symbol: "NEW", EnglishName: "Newcoin", Price: nil},
		priced("ETH", 300000),
	}}
	c := New(f, prices, newMemAlerts(), newRecordSink())

	require.NoError(t, c.Tick(context.Background()))

	_, ok, _ := prices.GetBySymbol(context.Background(), "BTC")
	assert.True(t, ok)
	_, ok, _ = prices.GetBySymbol(context.Background(), "ETH")
	assert.True(t, ok)
	_, ok, _ = prices.GetBySymbol(context.Background(), "NEW")
	assert.False(t, ok, "entries without a price are skipped")
}

func TestTickFetchFailureLeavesPricesIntact(t *testing.T) {
	prices := newMemPrices()
	old := domain.CurrencyRecord{Symbol: "BTC", Price: decimal.NewFromInt(100)}
	require.NoError(t, prices.Upsert(context.Background(), old))

	sink := newRecordSink()
	c := New(&fakeFeed{err: errors.New("feed down")}, prices, newMemAlerts(), sink)

	require.Error(t, c.Tick(context.Background()))

	rec, ok, _ := prices.GetBySymbol(context.Background(), "BTC")
	require.True(t, ok)
	assert.True(t, rec.Price.Equal(old.Price), "prior record survives a failed tick")
	assert.Zero(t, sink.count())
}

func matchedAlert(id, userID int64, target, price int64) domain.TriggeredAlert {
	return domain.TriggeredAlert{
		Alert: domain.Alert{
			ID:        id,
			UserID:    userID,
			Symbol:    "BTC",
			Target:    decimal.NewFromInt(target),
			Condition: domain.ConditionGTE,
			Status:    domain.AlertActive,
		},
		Price: decimal.NewFromInt(price),
	}
}

func TestTickFiresMatchedAlertOnce(t *testing.T) {
	alerts := newMemAlerts(matchedAlert(1, 42, 100, 150))
	sink := newRecordSink()
	c := New(&fakeFeed{}, newMemPrices(), alerts, sink)

	require.NoError(t, c.Tick(context.Background()))
	require.NoError(t, c.Tick(context.Background()))

	assert.Equal(t, 1, sink.count(), "a fired alert never re-notifies")
	assert.Equal(t, domain.AlertTriggered, alerts.status[1])
}

func TestConcurrentTicksFireExactlyOnce(t *testing.T) {
	alerts := newMemAlerts(matchedAlert(7, 42, 100, 150))
	sink := newRecordSink()
	c := New(&fakeFeed{}, newMemPrices(), alerts, sink)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Tick(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, sink.count(), "exactly one notification system-wide")
	assert.Equal(t, domain.AlertTriggered, alerts.status[7])
}

func TestPermanentDeliveryFailureStillSpendsAlert(t *testing.T) {
	alerts := newMemAlerts(matchedAlert(3, 99, 100, 150))
	sink := newRecordSink()
	sink.fail[99] = errors.New("forbidden: bot was blocked by the user")
	c := New(&fakeFeed{}, newMemPrices(), alerts, sink)

	require.NoError(t, c.Tick(context.Background()))

	assert.Zero(t, sink.count())
	assert.Equal(t, domain.AlertTriggered, alerts.status[3], "status change is not rolled back")

	// later ticks do not retry the undelivered alert
	delete(sink.fail, 99)
	require.NoError(t, c.Tick(context.Background()))
	assert.Zero(t, sink.count())
}

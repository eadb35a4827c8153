package currency

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/pricebot/internal/domain"
)

type staticLister []domain.CurrencyRecord

func (l staticLister) List(_ context.Context) ([]domain.CurrencyRecord, error) {
	return l, nil
}

func testRecords() staticLister {
	return staticLister{
		{Symbol: "BTC", EnglishName: "Bitcoin", LocalizedName: "بیت‌کوین", Price: decimal.NewFromInt(4500000)},
		{Symbol: "ETH", EnglishName: "Ethereum", LocalizedName: "اتریوم", Price: decimal.NewFromInt(300000)},
		{Symbol: "TON", EnglishName: "Toncoin", LocalizedName: "تون کوین", Price: decimal.NewFromInt(900)},
	}
}

func TestResolveBySymbolCaseInsensitive(t *testing.T) {
	d := NewDirectory(testRecords())

	for _, q := range []string{"BTC", "btc", "Btc", "  btc  "} {
		rec, ok, err := d.Resolve(context.Background(), q)
		require.NoError(t, err)
		require.True(t, ok, "query %q", q)
		assert.Equal(t, "BTC", rec.Symbol)
	}
}

func TestResolveByEnglishName(t *testing.T) {
	d := NewDirectory(testRecords())

	rec, ok, err := d.Resolve(context.Background(), "ethereum")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ETH", rec.Symbol)
}

func TestResolveLocalizedNameIgnoresJoinersAndSpaces(t *testing.T) {
	d := NewDirectory(testRecords())

	// stored with a zero-width joiner, typed with a plain space
	rec, ok, err := d.Resolve(context.Background(), "بیت کوین")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "BTC", rec.Symbol)

	// stored with a space, typed without any separator
	rec, ok, err = d.Resolve(context.Background(), "تونکوین")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "TON", rec.Symbol)
}

func TestResolveNoSubstringMatch(t *testing.T) {
	d := NewDirectory(testRecords())

	for _, q := range []string{"BT", "Bitco", "coin", "xyzabc", ""} {
		_, ok, err := d.Resolve(context.Background(), q)
		require.NoError(t, err)
		assert.False(t, ok, "query %q must not match", q)
	}
}

func TestResolveSymbolWinsOverNames(t *testing.T) {
	records := staticLister{
		{Symbol: "TON", EnglishName: "Toncoin"},
		{Symbol: "X", EnglishName: "TON"},
	}
	d := NewDirectory(records)

	rec, ok, err := d.Resolve(context.Background(), "ton")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "TON", rec.Symbol, "symbol match has priority over english name")
}

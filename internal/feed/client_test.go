package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/pricebot/core/logger"
)

func TestMain(m *testing.M) {
	_ = logger.InitLogger(nil)
	os.Exit(m.Run())
}

const snapshotBody = `{
  "result": {
    "markets": [
      {
        "symbol": "BTCTMN",
        "base_asset": "BTC",
        "en_base_asset": "Bitcoin",
        "fa_base_asset": "بیت‌کوین",
        "price": "4500000",
        "change_24h": -1.25,
        "volume_24h": "12345.6"
      },
      {
        "symbol": "ETHTMN",
        "base_asset": "ETH",
        "en_base_asset": "Ethereum",
        "fa_base_asset": "اتریوم",
        "price": 300000.5,
        "change_24h": "0.4",
        "volume_24h": 99
      },
      {
        "symbol": "NEWTMN",
        "base_asset": "NEW",
        "en_base_asset": "Newcoin",
        "fa_base_asset": "",
        "price": null,
        "change_24h": "0",
        "volume_24h": "0"
      }
    ]
  }
}`

func TestSnapshotDecodesMarkets(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/markets", r.URL.Path)
		gotKey = r.Header.Get("x-api-key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(snapshotBody))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "secret"})
	entries, err := c.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "secret", gotKey)

	btc := entries[0]
	assert.Equal(t, "BTC", btc.Symbol)
	assert.Equal(t, "Bitcoin", btc.EnglishName)
	require.NotNil(t, btc.Price)
	assert.Equal(t, "4500000", btc.Price.String())
	assert.Equal(t, "-1.25", btc.Change24h)
	assert.Equal(t, "12345.6", btc.Volume24h)

	eth := entries[1]
	require.NotNil(t, eth.Price)
	assert.Equal(t, "300000.5", eth.Price.String())
	assert.Equal(t, "0.4", eth.Change24h)
	assert.Equal(t, "99", eth.Volume24h)

	assert.Nil(t, entries[2].Price, "null price stays nil")
}

func TestSnapshotNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.Snapshot(context.Background())
	require.Error(t, err)
}

func TestSnapshotTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.Snapshot(context.Background())
	require.Error(t, err)
}

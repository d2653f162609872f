package ingestion

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
)

const marketsPayload = `[
  {
    "id": "bitcoin",
    "symbol": "btc",
    "name": "Bitcoin",
    "current_price": 65000.12,
    "market_cap": 1280000000000,
    "market_cap_rank": 1,
    "total_volume": 31000000000,
    "high_24h": 66000,
    "low_24h": 64000,
    "price_change_24h": 512.3,
    "price_change_percentage_24h": 0.79,
    "market_cap_change_24h": 10000000000,
    "circulating_supply": 19600000,
    "total_supply": 21000000,
    "max_supply": 21000000,
    "last_updated": "2024-01-01T01:00:00.000Z"
  },
  {
    "id": "tether",
    "symbol": "usdt",
    "name": "Tether",
    "current_price": 1.0,
    "market_cap": 91000000000,
    "market_cap_rank": 3,
    "total_volume": 42000000000,
    "high_24h": 1.001,
    "low_24h": 0.999,
    "price_change_24h": 0.0001,
    "price_change_percentage_24h": 0.01,
    "market_cap_change_24h": 120000000,
    "circulating_supply": 91000000000,
    "total_supply": 91000000000,
    "max_supply": null,
    "last_updated": "2024-01-01T01:00:00.000Z"
  }
]`

func TestFetchMarkets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/markets" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("vs_currency") != "usd" || q.Get("order") != "market_cap_desc" {
			t.Errorf("unexpected query parameters: %v", q)
		}
		if q.Get("per_page") != "2" {
			t.Errorf("per_page = %q, want 2", q.Get("per_page"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(marketsPayload))
	}))
	defer server.Close()

	client := NewPriceClient(PriceClientOptions{BaseURL: server.URL, NumCoins: 2}, zap.NewNop())

	records, raw, err := client.FetchMarkets(context.Background())
	if err != nil {
		t.Fatalf("FetchMarkets failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].ID != "bitcoin" || records[0].CurrentPrice == nil || *records[0].CurrentPrice != 65000.12 {
		t.Errorf("unexpected first record: %+v", records[0])
	}
	// Null numerics must survive as nil, not zero.
	if records[1].MaxSupply != nil {
		t.Errorf("tether max_supply should be nil, got %v", *records[1].MaxSupply)
	}
	if len(raw) == 0 {
		t.Error("raw payload should be returned for landing")
	}
}

func TestFetchMarketsRejectsEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewPriceClient(PriceClientOptions{BaseURL: server.URL}, zap.NewNop())
	if _, _, err := client.FetchMarkets(context.Background()); err == nil {
		t.Error("empty market list should fail validation")
	}
}

func TestFetchMarketsRejectsMissingRequiredFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"bitcoin","symbol":"btc","name":"Bitcoin","current_price":null,"market_cap":1}]`))
	}))
	defer server.Close()

	client := NewPriceClient(PriceClientOptions{BaseURL: server.URL}, zap.NewNop())
	if _, _, err := client.FetchMarkets(context.Background()); err == nil {
		t.Error("null current_price on first record should fail validation")
	}
}

func TestFetchMarketsRetriesOn5xx(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(marketsPayload))
	}))
	defer server.Close()

	client := NewPriceClient(PriceClientOptions{BaseURL: server.URL, NumCoins: 2, MaxRetries: 3}, zap.NewNop())

	records, _, err := client.FetchMarkets(context.Background())
	if err != nil {
		t.Fatalf("FetchMarkets should succeed on third attempt: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("got %d records, want 2", len(records))
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server called %d times, want 3", got)
	}
}

func TestFetchMarketsDoesNotRetryOn4xx(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewPriceClient(PriceClientOptions{BaseURL: server.URL, MaxRetries: 3}, zap.NewNop())
	if _, _, err := client.FetchMarkets(context.Background()); err == nil {
		t.Fatal("401 should be an error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server called %d times, want 1 (4xx is not retryable)", got)
	}
}

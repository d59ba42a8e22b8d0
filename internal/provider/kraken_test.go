package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newTestKraken(baseURL string) *Kraken {
	return NewKraken(KrakenOptions{BaseURL: baseURL, Timeout: time.Second}, noopLogger())
}

func TestKrakenFetchPriceSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/0/public/Ticker" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("pair"); got != "XBTUSD" {
			t.Fatalf("unexpected pair query %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":[],"result":{"XXBTZUSD":{"c":["68423.10000","0.01000000"]}}}`))
	}))
	defer srv.Close()

	price, err := newTestKraken(srv.URL).FetchPrice(context.Background(), "XBTUSD")
	if err != nil {
		t.Fatalf("FetchPrice failed: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("68423.1")) {
		t.Fatalf("expected 68423.1, got %s", price)
	}
}

func TestKrakenFetchPriceUnknownPair(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":["EQuery:Unknown asset pair"],"result":{}}`))
	}))
	defer srv.Close()

	_, err := newTestKraken(srv.URL).FetchPrice(context.Background(), "NOPEUSD")
	if !errors.Is(err, ErrPairNotFound) {
		t.Fatalf("expected ErrPairNotFound, got %v", err)
	}
}

func TestKrakenFetchPriceHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := newTestKraken(srv.URL).FetchPrice(context.Background(), "XBTUSD"); err == nil {
		t.Fatal("expected error on HTTP 503")
	}
}

func TestKrakenFetchPriceEmptyPair(t *testing.T) {
	_, err := newTestKraken("http://localhost").FetchPrice(context.Background(), "  ")
	if !errors.Is(err, ErrPairNotFound) {
		t.Fatalf("expected ErrPairNotFound, got %v", err)
	}
}

func TestKrakenFetchUSDPairsFiltersAndSorts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/0/public/AssetPairs" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":[],"result":{
			"XXBTZUSD":{"altname":"XBTUSD","wsname":"XBT/USD","base":"XXBT","quote":"ZUSD"},
			"XETHZEUR":{"altname":"ETHEUR","wsname":"ETH/EUR","base":"XETH","quote":"ZEUR"},
			"ADAUSD":{"altname":"ADAUSD","wsname":"ADA/USD","base":"ADA","quote":"USD"},
			"SOLUSD":{"altname":"SOLUSD","base":"SOL","quote":"USD"}
		}}`))
	}))
	defer srv.Close()

	pairs, err := newTestKraken(srv.URL).FetchUSDPairs(context.Background())
	if err != nil {
		t.Fatalf("FetchUSDPairs failed: %v", err)
	}
	if len(pairs) != 3 {
		t.Fatalf("expected 3 USD pairs, got %d", len(pairs))
	}
	if pairs[0].DisplayName != "ADA/USD" || pairs[1].DisplayName != "SOLUSD" || pairs[2].DisplayName != "XBT/USD" {
		t.Fatalf("unexpected order: %#v", pairs)
	}
	if pairs[1].DisplayName != "SOLUSD" {
		t.Fatalf("expected altname fallback for missing wsname, got %q", pairs[1].DisplayName)
	}
	if pairs[2].ID != "XXBTZUSD" || pairs[2].Base != "XXBT" {
		t.Fatalf("unexpected pair fields: %#v", pairs[2])
	}
}

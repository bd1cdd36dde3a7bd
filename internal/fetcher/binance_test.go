package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

const offersPayload = `{
  "data": [
    {
      "adv": {
        "price": "6.97",
        "surplusAmount": "1500.00",
        "minSingleTransAmount": "100",
        "maxSingleTransAmount": "10000",
        "tradeMethods": [{"paymentType": "BankTransfer"}]
      },
      "advertiser": {"nickName": "alice", "monthOrderCount": 240, "monthFinishRate": 0.99, "userIdentity": "merchant"}
    },
    {
      "adv": {
        "price": "6.91",
        "surplusAmount": "800.00",
        "minSingleTransAmount": "50",
        "maxSingleTransAmount": "5000",
        "tradeMethods": [{"paymentType": "BankTransfer"}, {"paymentType": "QRCode"}]
      },
      "advertiser": {"nickName": "bob", "monthOrderCount": 120, "monthFinishRate": 0.97, "userIdentity": "merchant"}
    },
    {
      "adv": {
        "price": "6.95",
        "surplusAmount": "2000.00",
        "minSingleTransAmount": "100",
        "maxSingleTransAmount": "20000",
        "tradeMethods": [{"paymentType": "QRCode"}]
      },
      "advertiser": {"nickName": "carol", "monthOrderCount": 88, "monthFinishRate": 0.95, "userIdentity": "user"}
    }
  ]
}`

func newTestBinance(baseURL string, maxRetries int) *Binance {
	return NewBinance(BinanceOptions{
		BaseURL:    baseURL,
		Fiat:       "BOB",
		Asset:      "USDT",
		PageSize:   10,
		MaxRetries: maxRetries,
		RetryDelay: 5 * time.Millisecond,
		Timeout:    time.Second,
		UserAgent:  "test",
	}, noopLogger())
}

func TestFetchOffersRetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(offersPayload))
	}))
	defer srv.Close()

	b := newTestBinance(srv.URL, 3)
	offers, err := b.FetchOffers(context.Background(), SideBuy)
	if err != nil {
		t.Fatalf("第 3 次尝试成功时不应报错: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("应恰好调用 3 次, 实际 %d", got)
	}
	if len(offers) != 3 {
		t.Fatalf("expected 3 offers, got %d", len(offers))
	}
}

func TestFetchOffersExhaustsRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	b := newTestBinance(srv.URL, 3)
	_, err := b.FetchOffers(context.Background(), SideSell)
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("重试耗尽后应返回 ErrRetriesExhausted, 实际 %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("应恰好调用 3 次, 实际 %d", got)
	}
}

func TestFetchOffersSortOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(offersPayload))
	}))
	defer srv.Close()

	b := newTestBinance(srv.URL, 1)

	buy, err := b.FetchOffers(context.Background(), SideBuy)
	if err != nil {
		t.Fatalf("buy fetch failed: %v", err)
	}
	if !buy[0].Price.Equal(decimal.RequireFromString("6.91")) {
		t.Fatalf("BUY must be sorted cheapest first, got %s", buy[0].Price)
	}

	sell, err := b.FetchOffers(context.Background(), SideSell)
	if err != nil {
		t.Fatalf("sell fetch failed: %v", err)
	}
	if !sell[0].Price.Equal(decimal.RequireFromString("6.97")) {
		t.Fatalf("SELL must be sorted highest first, got %s", sell[0].Price)
	}
}

func TestFetchOffersNormalizesQuotes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(offersPayload))
	}))
	defer srv.Close()

	b := newTestBinance(srv.URL, 1)
	offers, err := b.FetchOffers(context.Background(), SideBuy)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	// cheapest offer is bob's
	offer := offers[0]
	if offer.Counterparty != "bob" {
		t.Fatalf("unexpected counterparty: %s", offer.Counterparty)
	}
	if !offer.Verified {
		t.Fatal("merchant identity must map to verified")
	}
	if offer.CompletedOrders != 120 {
		t.Fatalf("unexpected completed orders: %d", offer.CompletedOrders)
	}
	if len(offer.PaymentMethods) != 2 || offer.PaymentMethods[1] != "QRCode" {
		t.Fatalf("unexpected payment methods: %v", offer.PaymentMethods)
	}

	// carol is not a merchant
	if offers[1].Verified {
		t.Fatal("non-merchant identity must not be verified")
	}
}

func TestAveragePrice(t *testing.T) {
	if got := AveragePrice(nil, 10); !got.IsZero() {
		t.Fatalf("empty offer list must average to 0, got %s", got)
	}

	offers := []OfferQuote{
		{Price: decimal.NewFromInt(10)},
		{Price: decimal.NewFromInt(20)},
	}
	if got := AveragePrice(offers, 5); !got.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("expected 15, got %s", got)
	}
	if got := AveragePrice(offers, 0); !got.IsZero() {
		t.Fatalf("n=0 选不出任何报价, 均值应为 0, 实际 %s", got)
	}
	if got := AveragePrice(offers, -3); !got.IsZero() {
		t.Fatalf("negative n must average to 0, got %s", got)
	}

	offers = []OfferQuote{
		{Price: decimal.RequireFromString("6.91")},
		{Price: decimal.RequireFromString("6.95")},
		{Price: decimal.RequireFromString("6.97")},
	}
	if got := AveragePrice(offers, 2); !got.Equal(decimal.RequireFromString("6.93")) {
		t.Fatalf("expected 6.93 over the first 2 offers, got %s", got)
	}
}

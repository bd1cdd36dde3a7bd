package fetcher

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Side identifies the direction of a P2P advert from the caller's perspective.
// BUY offers let the caller acquire the asset with fiat, SELL offers let the
// caller dispose of it.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ErrRetriesExhausted signals that every fetch attempt against the offer
// source failed. Callers must treat this as "no data", never as a zero price.
var ErrRetriesExhausted = errors.New("fetcher: retries exhausted")

// OfferQuote is a normalized P2P advert. It lives only for the duration of
// one fetch call and is never persisted.
type OfferQuote struct {
	Price           decimal.Decimal
	AvailableAmount decimal.Decimal
	MinLimit        decimal.Decimal
	MaxLimit        decimal.Decimal
	PaymentMethods  []string
	Counterparty    string
	CompletedOrders int
	CompletionRate  float64
	Verified        bool
}

// OfferFetcher retrieves an ordered page of offers for one side of the
// configured fiat/asset pair.
type OfferFetcher interface {
	FetchOffers(ctx context.Context, side Side) ([]OfferQuote, error)
}

// ReferencePriceFetcher retrieves the reference asset spot price.
type ReferencePriceFetcher interface {
	FetchPrice(ctx context.Context) (decimal.Decimal, error)
}

// AveragePrice returns the arithmetic mean over the first n offer prices,
// rounded to 2 decimal places, or zero when no offers are available or n is
// not positive. A zero result from an empty-but-successful fetch is distinct
// from a fetch error.
func AveragePrice(offers []OfferQuote, n int) decimal.Decimal {
	if len(offers) == 0 || n <= 0 {
		return decimal.Zero
	}
	if n > len(offers) {
		n = len(offers)
	}

	sum := decimal.Zero
	for _, offer := range offers[:n] {
		sum = sum.Add(offer.Price)
	}
	return sum.Div(decimal.NewFromInt(int64(n))).Round(2)
}

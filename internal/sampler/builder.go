package sampler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/carlos-olivera/data-bs-cripto/internal/fetcher"
	"github.com/carlos-olivera/data-bs-cripto/internal/storage"
)

// Builder assembles one complete price sample per acquisition cycle.
type Builder struct {
	offers          fetcher.OfferFetcher
	reference       fetcher.ReferencePriceFetcher
	offersToAverage int
	logger          zerolog.Logger
}

// NewBuilder constructs a sample builder.
func NewBuilder(offers fetcher.OfferFetcher, reference fetcher.ReferencePriceFetcher, offersToAverage int, logger zerolog.Logger) *Builder {
	if offersToAverage <= 0 {
		offersToAverage = 10
	}
	return &Builder{
		offers:          offers,
		reference:       reference,
		offersToAverage: offersToAverage,
		logger:          logger.With().Str("component", "sample_builder").Logger(),
	}
}

// Build fetches both P2P sides plus the reference price and combines them
// into a single timestamped sample.
//
// If either side exhausts its retries the whole sample is discarded: the
// analyzer assumes every persisted sample has both rates present, so partial
// data must never reach storage. The reference price is supplementary, not
// load-bearing; its failure degrades to a zero substitute.
func (b *Builder) Build(ctx context.Context, now time.Time) (storage.PriceSample, error) {
	referencePrice, err := b.reference.FetchPrice(ctx)
	if err != nil {
		b.logger.Warn().Err(err).Msg("reference price unavailable, substituting zero")
		referencePrice = decimal.Zero
	}

	buyOffers, err := b.offers.FetchOffers(ctx, fetcher.SideBuy)
	if err != nil {
		return storage.PriceSample{}, fmt.Errorf("fetch buy-side offers: %w", err)
	}
	buyRate := fetcher.AveragePrice(buyOffers, b.offersToAverage)

	sellOffers, err := b.offers.FetchOffers(ctx, fetcher.SideSell)
	if err != nil {
		return storage.PriceSample{}, fmt.Errorf("fetch sell-side offers: %w", err)
	}
	sellRate := fetcher.AveragePrice(sellOffers, b.offersToAverage)

	// fiat to reference asset via the buy rate, assuming the stablecoin
	// tracks the reference currency
	crossRate := decimal.Zero
	if referencePrice.IsPositive() {
		crossRate = buyRate.Div(referencePrice).Round(8)
	}

	sample := storage.PriceSample{
		SampledAt: now,
		BTCUSD:    referencePrice.Round(2).InexactFloat64(),
		BuyRate:   buyRate.InexactFloat64(),
		SellRate:  sellRate.InexactFloat64(),
		CrossRate: crossRate.InexactFloat64(),
	}

	b.logger.Info().
		Str("datetime", sample.Datetime()).
		Float64(storage.FieldBuyRate, sample.BuyRate).
		Float64(storage.FieldSellRate, sample.SellRate).
		Float64(storage.FieldReferenceRate, sample.BTCUSD).
		Msg("sample built")

	return sample, nil
}

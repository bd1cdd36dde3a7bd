package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const p2pSearchPath = "/bapi/c2c/v2/friendly/c2c/adv/search"

// BinanceOptions parameterise the P2P offer fetcher.
type BinanceOptions struct {
	BaseURL      string
	Fiat         string
	Asset        string
	PageSize     int
	VerifiedOnly bool
	MaxRetries   int
	RetryDelay   time.Duration
	Timeout      time.Duration
	UserAgent    string
}

// Binance fetches P2P adverts from the Binance C2C search endpoint.
type Binance struct {
	opts    BinanceOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewBinance constructs a P2P offer fetcher.
func NewBinance(opts BinanceOptions, logger zerolog.Logger) *Binance {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Minute
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://p2p.binance.com"
	}

	return &Binance{
		opts:    opts,
		logger:  logger.With().Str("component", "binance_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchOffers requests one page of adverts for the given side, retrying up to
// MaxRetries times with a fixed delay between attempts. The delay is
// deliberately not exponential: the upstream rate-limit window is short and
// stable. Offers come back sorted best-price-first for the requested side.
func (b *Binance) FetchOffers(ctx context.Context, side Side) ([]OfferQuote, error) {
	payload := searchRequest{
		Asset:         b.opts.Asset,
		Fiat:          b.opts.Fiat,
		PublisherType: "merchant",
		MerchantCheck: b.opts.VerifiedOnly,
		Page:          1,
		Rows:          b.opts.PageSize,
		TradeType:     string(side),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= b.opts.MaxRetries; attempt++ {
		b.logger.Debug().Int("attempt", attempt).Int("max_retries", b.opts.MaxRetries).
			Str("side", string(side)).Msg("requesting p2p offers")

		offers, attemptErr := b.fetchOnce(ctx, body)
		if attemptErr == nil {
			sortOffers(offers, side)
			b.logger.Info().Int("offers", len(offers)).Str("side", string(side)).Msg("p2p offers fetched")
			return offers, nil
		}

		lastErr = attemptErr
		b.logger.Warn().Err(attemptErr).Int("attempt", attempt).Str("side", string(side)).Msg("p2p fetch attempt failed")

		if attempt == b.opts.MaxRetries {
			break
		}
		if err := sleepCtx(ctx, b.opts.RetryDelay); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: side %s after %d attempts: %v", ErrRetriesExhausted, side, b.opts.MaxRetries, lastErr)
}

func (b *Binance) fetchOnce(ctx context.Context, body []byte) ([]OfferQuote, error) {
	endpoint := b.baseURL + p2pSearchPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")
	if ua := strings.TrimSpace(b.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "criptowatch/1.0")
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payloadBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("binance p2p error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payloadBytes)))
	}

	var searchRes searchResponse
	if err := json.Unmarshal(payloadBytes, &searchRes); err != nil {
		return nil, fmt.Errorf("decode p2p response: %w", err)
	}

	offers := make([]OfferQuote, 0, len(searchRes.Data))
	for _, adv := range searchRes.Data {
		methods := make([]string, 0, len(adv.Adv.TradeMethods))
		for _, tm := range adv.Adv.TradeMethods {
			methods = append(methods, tm.PaymentType)
		}

		offers = append(offers, OfferQuote{
			Price:           lenientDecimal(adv.Adv.Price),
			AvailableAmount: lenientDecimal(adv.Adv.SurplusAmount),
			MinLimit:        lenientDecimal(adv.Adv.MinSingleTransAmount),
			MaxLimit:        lenientDecimal(adv.Adv.MaxSingleTransAmount),
			PaymentMethods:  methods,
			Counterparty:    adv.Advertiser.NickName,
			CompletedOrders: adv.Advertiser.MonthOrderCount,
			CompletionRate:  adv.Advertiser.MonthFinishRate,
			Verified:        adv.Advertiser.UserIdentity == "merchant",
		})
	}

	return offers, nil
}

// sortOffers orders best price first: lowest price to acquire the asset on
// BUY, highest price to dispose of it on SELL.
func sortOffers(offers []OfferQuote, side Side) {
	sort.SliceStable(offers, func(i, j int) bool {
		if side == SideBuy {
			return offers[i].Price.LessThan(offers[j].Price)
		}
		return offers[i].Price.GreaterThan(offers[j].Price)
	})
}

// lenientDecimal coerces malformed upstream numerics to zero rather than
// failing the whole page.
func lenientDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type searchRequest struct {
	Asset         string `json:"asset"`
	Fiat          string `json:"fiat"`
	PublisherType string `json:"publisherType"`
	MerchantCheck bool   `json:"merchantCheck"`
	Page          int    `json:"page"`
	Rows          int    `json:"rows"`
	TradeType     string `json:"tradeType"`
}

type searchResponse struct {
	Data []struct {
		Adv struct {
			Price                string `json:"price"`
			SurplusAmount        string `json:"surplusAmount"`
			MinSingleTransAmount string `json:"minSingleTransAmount"`
			MaxSingleTransAmount string `json:"maxSingleTransAmount"`
			TradeMethods         []struct {
				PaymentType string `json:"paymentType"`
			} `json:"tradeMethods"`
		} `json:"adv"`
		Advertiser struct {
			NickName        string  `json:"nickName"`
			MonthOrderCount int     `json:"monthOrderCount"`
			MonthFinishRate float64 `json:"monthFinishRate"`
			UserIdentity    string  `json:"userIdentity"`
		} `json:"advertiser"`
	} `json:"data"`
}

var _ OfferFetcher = (*Binance)(nil)

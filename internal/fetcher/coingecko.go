package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const simplePricePath = "/simple/price"

// CoingeckoOptions parameterise the reference price fetcher.
type CoingeckoOptions struct {
	BaseURL    string
	CoinID     string
	VsCurrency string
	Timeout    time.Duration
	UserAgent  string
}

// Coingecko fetches the reference asset spot price. The reference price is
// supplementary to the P2P rates, so there is no retry loop at this layer.
type Coingecko struct {
	opts    CoingeckoOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewCoingecko constructs a reference price fetcher.
func NewCoingecko(opts CoingeckoOptions, logger zerolog.Logger) *Coingecko {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}
	if opts.CoinID == "" {
		opts.CoinID = "bitcoin"
	}
	if opts.VsCurrency == "" {
		opts.VsCurrency = "usd"
	}

	return &Coingecko{
		opts:    opts,
		logger:  logger.With().Str("component", "coingecko_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchPrice retrieves the configured coin price in the configured currency.
func (c *Coingecko) FetchPrice(ctx context.Context) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s%s?ids=%s&vs_currencies=%s", c.baseURL, simplePricePath, c.opts.CoinID, c.opts.VsCurrency)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Decimal{}, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, err
	}
	defer resp.Body.Close()

	payloadBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Decimal{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("coingecko error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payloadBytes)))
	}

	var prices map[string]map[string]json.Number
	if err := json.Unmarshal(payloadBytes, &prices); err != nil {
		return decimal.Decimal{}, fmt.Errorf("decode coingecko response: %w", err)
	}

	raw, ok := prices[c.opts.CoinID][c.opts.VsCurrency]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("coingecko response missing %s/%s", c.opts.CoinID, c.opts.VsCurrency)
	}

	price, err := decimal.NewFromString(raw.String())
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse reference price: %w", err)
	}

	return price, nil
}

var _ ReferencePriceFetcher = (*Coingecko)(nil)

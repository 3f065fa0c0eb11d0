package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"pricewatch/internal/domain"
	"pricewatch/internal/util"
)

// CoinGecko is the crypto price provider. It needs no credential; the free
// tier is rate limited, so all calls go through a shared token bucket.
type CoinGecko struct {
	baseURL string
	httpc   *http.Client
	limiter *util.RateLimiter
}

// NewCoinGecko creates a CoinGecko client. baseURL is typically
// "https://api.coingecko.com"; tests point it at a local server.
func NewCoinGecko(baseURL string, ratePerMin int) *CoinGecko {
	return &CoinGecko{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 10 * time.Second},
		limiter: util.NewRateLimiter(ratePerMin),
	}
}

// Name implements Source.
func (c *CoinGecko) Name() string { return "coingecko" }

type cgQuote struct {
	USD          *float64 `json:"usd"`
	USD24hChange *float64 `json:"usd_24h_change"`
}

// Current fetches the spot price and 24h change for a coin id.
func (c *CoinGecko) Current(ctx context.Context, ref domain.AssetRef) (domain.PriceSnapshot, error) {
	u := fmt.Sprintf("%s/api/v3/simple/price?ids=%s&vs_currencies=usd&include_24hr_change=true",
		c.baseURL, url.QueryEscape(ref.Identifier))

	var body map[string]cgQuote
	if err := c.getJSON(ctx, "current", u, &body); err != nil {
		return domain.PriceSnapshot{}, err
	}

	q, ok := body[ref.Identifier]
	if !ok || q.USD == nil {
		return domain.PriceSnapshot{}, &Error{
			Kind: KindMalformed, Provider: c.Name(), Op: "current",
			Err: fmt.Errorf("no usd price for %q in response", ref.Identifier),
		}
	}

	// A missing 24h change stays absent; it is not coerced to zero.
	return domain.PriceSnapshot{
		Price:     *q.USD,
		ChangePct: q.USD24hChange,
		Timestamp: time.Now(),
	}, nil
}

type cgMarketChart struct {
	Prices [][]float64 `json:"prices"` // [timestampMillis, price] pairs
}

// History fetches the market chart for the last windowDays days.
func (c *CoinGecko) History(ctx context.Context, ref domain.AssetRef, windowDays int) ([]domain.PricePoint, error) {
	u := fmt.Sprintf("%s/api/v3/coins/%s/market_chart?vs_currency=usd&days=%d",
		c.baseURL, url.PathEscape(ref.Identifier), windowDays)

	var body cgMarketChart
	if err := c.getJSON(ctx, "history", u, &body); err != nil {
		return nil, err
	}
	if body.Prices == nil {
		return nil, &Error{
			Kind: KindMalformed, Provider: c.Name(), Op: "history",
			Err: fmt.Errorf("response has no prices field"),
		}
	}

	points := make([]domain.PricePoint, 0, len(body.Prices))
	for _, pair := range body.Prices {
		if len(pair) < 2 {
			continue
		}
		points = append(points, domain.PricePoint{
			Timestamp: time.UnixMilli(int64(pair[0])),
			Price:     pair[1],
		})
	}
	return points, nil
}

// getJSON performs a rate-limited GET with retry on transient failures and
// decodes the response body into v.
func (c *CoinGecko) getJSON(ctx context.Context, op, u string, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &Error{Kind: KindNetwork, Provider: c.Name(), Op: op, Err: err}
	}

	return util.Retry(ctx, 2, 500*time.Millisecond, Retryable, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return &Error{Kind: KindNetwork, Provider: c.Name(), Op: op, Err: err}
		}

		resp, err := c.httpc.Do(req)
		if err != nil {
			return &Error{Kind: KindNetwork, Provider: c.Name(), Op: op, Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &Error{Kind: KindNetwork, Provider: c.Name(), Op: op, Err: fmt.Errorf("status %s", resp.Status)}
		}

		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return &Error{Kind: KindMalformed, Provider: c.Name(), Op: op, Err: err}
		}
		return nil
	})
}

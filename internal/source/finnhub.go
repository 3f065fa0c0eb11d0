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

// Finnhub is the stock quote provider. Every call requires an API token; if
// none is configured the client fails fast with KindMissingCredential before
// touching the network.
type Finnhub struct {
	baseURL string
	token   string
	httpc   *http.Client
	limiter *util.RateLimiter
}

// NewFinnhub creates a Finnhub client. An empty token is allowed; stock
// fetches will then fail with a missing-credential error until one is set.
func NewFinnhub(baseURL, token string, ratePerMin int) *Finnhub {
	return &Finnhub{
		baseURL: baseURL,
		token:   token,
		httpc:   &http.Client{Timeout: 10 * time.Second},
		limiter: util.NewRateLimiter(ratePerMin),
	}
}

// Name implements Source.
func (f *Finnhub) Name() string { return "finnhub" }

func (f *Finnhub) credential(op string) error {
	if f.token == "" {
		return &Error{
			Kind: KindMissingCredential, Provider: f.Name(), Op: op,
			Err: fmt.Errorf("no API token configured"),
		}
	}
	return nil
}

type fhQuote struct {
	Current   float64  `json:"c"`
	ChangePct *float64 `json:"dp"`
	Change    *float64 `json:"d"`
}

// Current fetches the latest quote for a ticker.
func (f *Finnhub) Current(ctx context.Context, ref domain.AssetRef) (domain.PriceSnapshot, error) {
	if err := f.credential("current"); err != nil {
		return domain.PriceSnapshot{}, err
	}

	u := fmt.Sprintf("%s/api/v1/quote?symbol=%s&token=%s",
		f.baseURL, url.QueryEscape(ref.Identifier), url.QueryEscape(f.token))

	var body fhQuote
	if err := f.getJSON(ctx, "current", u, &body); err != nil {
		return domain.PriceSnapshot{}, err
	}

	// Finnhub answers unknown tickers with an all-zero quote instead of an
	// error status.
	if body.Current == 0 {
		return domain.PriceSnapshot{}, &Error{
			Kind: KindDataUnavailable, Provider: f.Name(), Op: "current",
			Err: fmt.Errorf("no quote for %q", ref.Identifier),
		}
	}

	return domain.PriceSnapshot{
		Price:     body.Current,
		ChangePct: body.ChangePct,
		Timestamp: time.Now(),
	}, nil
}

type fhCandles struct {
	Status string    `json:"s"`
	Times  []int64   `json:"t"`
	Closes []float64 `json:"c"`
}

// History fetches hourly close candles covering the last windowDays days.
func (f *Finnhub) History(ctx context.Context, ref domain.AssetRef, windowDays int) ([]domain.PricePoint, error) {
	if err := f.credential("history"); err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	from := now - int64(windowDays)*24*3600
	u := fmt.Sprintf("%s/api/v1/stock/candle?symbol=%s&resolution=60&from=%d&to=%d&token=%s",
		f.baseURL, url.QueryEscape(ref.Identifier), from, now, url.QueryEscape(f.token))

	var body fhCandles
	if err := f.getJSON(ctx, "history", u, &body); err != nil {
		return nil, err
	}

	// The status field must be checked before trusting t/c. A non-"ok"
	// status is a well-formed no-data answer, not a malformed payload.
	if body.Status != "ok" {
		return nil, &Error{
			Kind: KindDataUnavailable, Provider: f.Name(), Op: "history",
			Err: fmt.Errorf("candle status %q for %q", body.Status, ref.Identifier),
		}
	}
	if len(body.Times) != len(body.Closes) {
		return nil, &Error{
			Kind: KindMalformed, Provider: f.Name(), Op: "history",
			Err: fmt.Errorf("t/c length mismatch: %d vs %d", len(body.Times), len(body.Closes)),
		}
	}

	points := make([]domain.PricePoint, 0, len(body.Times))
	for i := range body.Times {
		points = append(points, domain.PricePoint{
			Timestamp: time.Unix(body.Times[i], 0),
			Price:     body.Closes[i],
		})
	}
	return points, nil
}

// getJSON performs a rate-limited GET with retry on transient failures and
// decodes the response body into v.
func (f *Finnhub) getJSON(ctx context.Context, op, u string, v any) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return &Error{Kind: KindNetwork, Provider: f.Name(), Op: op, Err: err}
	}

	return util.Retry(ctx, 2, 500*time.Millisecond, Retryable, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return &Error{Kind: KindNetwork, Provider: f.Name(), Op: op, Err: err}
		}

		resp, err := f.httpc.Do(req)
		if err != nil {
			return &Error{Kind: KindNetwork, Provider: f.Name(), Op: op, Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &Error{Kind: KindNetwork, Provider: f.Name(), Op: op, Err: fmt.Errorf("status %s", resp.Status)}
		}

		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return &Error{Kind: KindMalformed, Provider: f.Name(), Op: op, Err: err}
		}
		return nil
	})
}

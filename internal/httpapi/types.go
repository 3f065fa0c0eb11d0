// Package httpapi exposes the dashboard's command surface over HTTP: the
// browser UI invokes explicit commands (add asset, set alert, select asset)
// and receives live updates over a WebSocket.
package httpapi

import (
	"pricewatch/internal/domain"
	"pricewatch/internal/series"
)

// StateResponse is the full dashboard state returned by GET /api/state.
type StateResponse struct {
	Watchlist       []domain.AssetRef  `json:"watchlist"`
	Alerts          []domain.AlertRule `json:"alerts"`
	LastPrices      map[string]float64 `json:"lastPrices"`
	ActiveKey       string             `json:"activeKey,omitempty"`
	Series          []series.Point     `json:"series,omitempty"`
	IntervalSeconds int                `json:"intervalSeconds"`
	RangeDays       int                `json:"rangeDays"`
	Theme           string             `json:"theme,omitempty"`
}

// AddAssetRequest is the body of POST /api/watchlist.
type AddAssetRequest struct {
	Kind       domain.AssetKind `json:"kind"`
	Identifier string           `json:"identifier"`
}

// SetAlertRequest is the body of POST /api/alerts.
type SetAlertRequest struct {
	WatchKey     string                `json:"watchKey"`
	ThresholdPct float64               `json:"thresholdPct"`
	Direction    domain.AlertDirection `json:"direction"`
}

// SelectAssetRequest is the body of POST /api/view.
type SelectAssetRequest struct {
	WatchKey string `json:"watchKey"`
}

// ViewResponse is the synchronous result of selecting an asset or changing
// the time range.
type ViewResponse struct {
	Ref      domain.AssetRef      `json:"ref"`
	Snapshot domain.PriceSnapshot `json:"snapshot"`
	Points   []series.Point       `json:"points"`
}

// IntervalRequest is the body of PUT /api/interval.
type IntervalRequest struct {
	Seconds int `json:"seconds"`
}

// IntervalResponse reports the polling period actually applied after the
// floor is enforced.
type IntervalResponse struct {
	Seconds int `json:"seconds"`
}

// RangeRequest is the body of PUT /api/range.
type RangeRequest struct {
	Days int `json:"days"`
}

// ThemeRequest is the body of PUT /api/prefs/theme.
type ThemeRequest struct {
	Theme string `json:"theme"`
}

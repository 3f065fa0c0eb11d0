// Package domain defines the core types shared across the pricewatch system:
// tracked assets, price snapshots, alert rules, and alert events.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// AssetKind identifies which upstream provider an asset is priced by.
type AssetKind string

const (
	KindCrypto AssetKind = "crypto"
	KindStock  AssetKind = "stock"
)

// AlertDirection is the side of the baseline a rule watches.
type AlertDirection string

const (
	DirectionAbove AlertDirection = "above"
	DirectionBelow AlertDirection = "below"
)

// AssetRef names a single tracked asset. Identifier is normalized per kind:
// lowercase CoinGecko id for crypto, uppercase ticker for stocks.
type AssetRef struct {
	Kind        AssetKind `json:"kind"`
	Identifier  string    `json:"identifier"`
	DisplayName string    `json:"display"`
}

// NewAssetRef builds an AssetRef with kind-appropriate identifier casing.
// The display name defaults to the identifier as the user typed it.
func NewAssetRef(kind AssetKind, identifier string) AssetRef {
	identifier = strings.TrimSpace(identifier)
	switch kind {
	case KindCrypto:
		return AssetRef{Kind: kind, Identifier: strings.ToLower(identifier), DisplayName: identifier}
	default:
		upper := strings.ToUpper(identifier)
		return AssetRef{Kind: kind, Identifier: upper, DisplayName: upper}
	}
}

// WatchKey returns the identity key "kind:identifier" that uniquely names
// this asset within a watchlist, and that alert rules and baselines are
// keyed by.
func (r AssetRef) WatchKey() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.Identifier)
}

// PriceSnapshot is the most recent quote for an asset. ChangePct is nil when
// the provider did not report a 24h/day change, which is distinct from a
// reported change of zero.
type PriceSnapshot struct {
	Price     float64   `json:"price"`
	ChangePct *float64  `json:"changePct,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PricePoint is one historical observation in a chart series.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// AlertRule watches one asset for a percentage move from its baseline.
// WatchKey is a plain string rather than a live AssetRef so the rule
// tolerates its target being removed from the watchlist later.
type AlertRule struct {
	WatchKey     string         `json:"watchKey"`
	ThresholdPct float64        `json:"thresholdPct"`
	Direction    AlertDirection `json:"direction"`
}

// AlertEvent records a single threshold crossing.
type AlertEvent struct {
	WatchKey     string         `json:"watchKey"`
	Direction    AlertDirection `json:"direction"`
	ThresholdPct float64        `json:"thresholdPct"`
	Baseline     float64        `json:"baseline"`
	Price        float64        `json:"price"`
	ChangePct    float64        `json:"changePct"`
	Timestamp    time.Time      `json:"timestamp"`
}

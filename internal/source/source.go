// Package source normalizes the two upstream price providers (CoinGecko for
// crypto, Finnhub for stocks) behind one interface returning snapshots and
// historical series. Every failure is converted to a tagged *Error at this
// layer; nothing else escapes to callers.
package source

import (
	"context"
	"errors"
	"fmt"

	"pricewatch/internal/domain"
)

// FailureKind classifies a provider failure.
type FailureKind string

const (
	// KindNetwork is a transport error or a non-2xx response.
	KindNetwork FailureKind = "network"
	// KindDataUnavailable is a well-formed response signaling no data,
	// e.g. Finnhub candle status != "ok".
	KindDataUnavailable FailureKind = "data_unavailable"
	// KindMissingCredential means a stock call was attempted without a
	// configured API token. Callers must not retry this kind.
	KindMissingCredential FailureKind = "missing_credential"
	// KindMalformed is a response missing an expected field or shape.
	KindMalformed FailureKind = "malformed"
)

// Error is a tagged provider failure.
type Error struct {
	Kind     FailureKind
	Provider string
	Op       string // "current" or "history"
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Provider, e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Provider, e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from an error chain, or "" when the error
// did not come from this package.
func KindOf(err error) FailureKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// Retryable reports whether a failed call is worth repeating. Only transient
// network failures qualify; a missing credential or an upstream "no data"
// answer will not improve on retry.
func Retryable(err error) bool {
	return KindOf(err) == KindNetwork
}

// Source fetches current and historical prices for one asset kind.
type Source interface {
	// Name identifies the provider in logs and failure messages.
	Name() string

	// Current returns the latest quote for ref.
	Current(ctx context.Context, ref domain.AssetRef) (domain.PriceSnapshot, error)

	// History returns a chronologically ordered price series covering the
	// last windowDays days.
	History(ctx context.Context, ref domain.AssetRef, windowDays int) ([]domain.PricePoint, error)
}

// Router selects the provider for an asset by its kind.
type Router struct {
	crypto Source
	stock  Source
}

// NewRouter wires the crypto and stock providers.
func NewRouter(crypto, stock Source) *Router {
	return &Router{crypto: crypto, stock: stock}
}

// For returns the provider responsible for the given kind.
func (r *Router) For(kind domain.AssetKind) Source {
	if kind == domain.KindCrypto {
		return r.crypto
	}
	return r.stock
}

// Current dispatches to the provider for ref's kind.
func (r *Router) Current(ctx context.Context, ref domain.AssetRef) (domain.PriceSnapshot, error) {
	return r.For(ref.Kind).Current(ctx, ref)
}

// History dispatches to the provider for ref's kind.
func (r *Router) History(ctx context.Context, ref domain.AssetRef, windowDays int) ([]domain.PricePoint, error) {
	return r.For(ref.Kind).History(ctx, ref, windowDays)
}

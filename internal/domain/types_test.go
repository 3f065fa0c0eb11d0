package domain

import (
	"testing"
	"time"
)

func TestNewAssetRefNormalization(t *testing.T) {
	tests := []struct {
		kind       AssetKind
		input      string
		identifier string
		display    string
		watchKey   string
	}{
		{KindCrypto, "Bitcoin", "bitcoin", "Bitcoin", "crypto:bitcoin"},
		{KindCrypto, "  ethereum ", "ethereum", "ethereum", "crypto:ethereum"},
		{KindStock, "aapl", "AAPL", "AAPL", "stock:AAPL"},
		{KindStock, "MSFT", "MSFT", "MSFT", "stock:MSFT"},
	}

	for _, tc := range tests {
		ref := NewAssetRef(tc.kind, tc.input)
		if ref.Identifier != tc.identifier {
			t.Errorf("NewAssetRef(%s, %q).Identifier = %q, want %q", tc.kind, tc.input, ref.Identifier, tc.identifier)
		}
		if ref.DisplayName != tc.display {
			t.Errorf("NewAssetRef(%s, %q).DisplayName = %q, want %q", tc.kind, tc.input, ref.DisplayName, tc.display)
		}
		if ref.WatchKey() != tc.watchKey {
			t.Errorf("NewAssetRef(%s, %q).WatchKey() = %q, want %q", tc.kind, tc.input, ref.WatchKey(), tc.watchKey)
		}
	}
}

func TestTypesExist(t *testing.T) {
	// Verify PriceSnapshot distinguishes "no change reported" from zero.
	snap := PriceSnapshot{}
	if snap.Price != 0 {
		t.Error("expected zero Price for zero-value PriceSnapshot")
	}
	if snap.ChangePct != nil {
		t.Error("expected nil ChangePct for zero-value PriceSnapshot")
	}
	if !snap.Timestamp.IsZero() {
		t.Error("expected zero Timestamp for zero-value PriceSnapshot")
	}

	// Verify enum constants are defined correctly.
	if KindCrypto != "crypto" || KindStock != "stock" {
		t.Error("AssetKind constants have unexpected values")
	}
	if DirectionAbove != "above" || DirectionBelow != "below" {
		t.Error("AlertDirection constants have unexpected values")
	}

	// Verify structs can be constructed with real values.
	now := time.Now()
	evt := AlertEvent{
		WatchKey:     "crypto:bitcoin",
		Direction:    DirectionAbove,
		ThresholdPct: 5,
		Baseline:     100,
		Price:        105,
		ChangePct:    5,
		Timestamp:    now,
	}
	if evt.WatchKey != "crypto:bitcoin" {
		t.Errorf("evt.WatchKey = %q, want %q", evt.WatchKey, "crypto:bitcoin")
	}
}

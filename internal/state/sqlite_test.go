package state

import (
	"path/filepath"
	"testing"

	"pricewatch/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWatchlistRoundTrip(t *testing.T) {
	s := openTestStore(t)

	refs := []domain.AssetRef{
		domain.NewAssetRef(domain.KindCrypto, "bitcoin"),
		domain.NewAssetRef(domain.KindStock, "AAPL"),
		domain.NewAssetRef(domain.KindCrypto, "ethereum"),
	}
	if err := s.SaveWatchlist(refs); err != nil {
		t.Fatalf("SaveWatchlist returned error: %v", err)
	}

	loaded, err := s.LoadWatchlist()
	if err != nil {
		t.Fatalf("LoadWatchlist returned error: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("len(loaded) = %d, want 3", len(loaded))
	}
	for i := range refs {
		if loaded[i] != refs[i] {
			t.Errorf("loaded[%d] = %+v, want %+v", i, loaded[i], refs[i])
		}
	}

	// Replace semantics: saving a shorter list drops the rest.
	if err := s.SaveWatchlist(refs[:1]); err != nil {
		t.Fatalf("SaveWatchlist returned error: %v", err)
	}
	loaded, err = s.LoadWatchlist()
	if err != nil {
		t.Fatalf("LoadWatchlist returned error: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Identifier != "bitcoin" {
		t.Errorf("loaded = %+v, want [bitcoin]", loaded)
	}
}

func TestAlertsRoundTrip(t *testing.T) {
	s := openTestStore(t)

	rules := []domain.AlertRule{
		{WatchKey: "crypto:bitcoin", ThresholdPct: 5, Direction: domain.DirectionAbove},
		{WatchKey: "stock:AAPL", ThresholdPct: 2.5, Direction: domain.DirectionBelow},
	}
	if err := s.SaveAlerts(rules); err != nil {
		t.Fatalf("SaveAlerts returned error: %v", err)
	}

	loaded, err := s.LoadAlerts()
	if err != nil {
		t.Fatalf("LoadAlerts returned error: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("len(loaded) = %d, want 2", len(loaded))
	}
	for i := range rules {
		if loaded[i] != rules[i] {
			t.Errorf("loaded[%d] = %+v, want %+v", i, loaded[i], rules[i])
		}
	}
}

func TestBaselinesUpsert(t *testing.T) {
	s := openTestStore(t)

	if err := s.SaveBaselines(map[string]float64{"crypto:bitcoin": 100, "stock:AAPL": 190}); err != nil {
		t.Fatalf("SaveBaselines returned error: %v", err)
	}
	// Update one, leave the other untouched.
	if err := s.SaveBaselines(map[string]float64{"crypto:bitcoin": 105}); err != nil {
		t.Fatalf("SaveBaselines returned error: %v", err)
	}

	loaded, err := s.LoadBaselines()
	if err != nil {
		t.Fatalf("LoadBaselines returned error: %v", err)
	}
	if loaded["crypto:bitcoin"] != 105 {
		t.Errorf("baseline[crypto:bitcoin] = %v, want 105", loaded["crypto:bitcoin"])
	}
	if loaded["stock:AAPL"] != 190 {
		t.Errorf("baseline[stock:AAPL] = %v, want 190 (untouched)", loaded["stock:AAPL"])
	}
}

func TestPrefs(t *testing.T) {
	s := openTestStore(t)

	if v, err := s.Pref(PrefTheme); err != nil || v != "" {
		t.Errorf("Pref(theme) = (%q, %v), want (\"\", nil) when unset", v, err)
	}

	if err := s.SetPref(PrefTheme, "dark"); err != nil {
		t.Fatalf("SetPref returned error: %v", err)
	}
	if err := s.SetPref(PrefTheme, "light"); err != nil {
		t.Fatalf("SetPref returned error: %v", err)
	}

	v, err := s.Pref(PrefTheme)
	if err != nil {
		t.Fatalf("Pref returned error: %v", err)
	}
	if v != "light" {
		t.Errorf("Pref(theme) = %q, want light", v)
	}
}

func TestReopenKeepsState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if err := s.SaveWatchlist([]domain.AssetRef{domain.NewAssetRef(domain.KindCrypto, "bitcoin")}); err != nil {
		t.Fatalf("SaveWatchlist returned error: %v", err)
	}
	s.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen returned error: %v", err)
	}
	defer s2.Close()
	loaded, err := s2.LoadWatchlist()
	if err != nil {
		t.Fatalf("LoadWatchlist returned error: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Identifier != "bitcoin" {
		t.Errorf("loaded = %+v, want [bitcoin]", loaded)
	}
}

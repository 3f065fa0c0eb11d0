// Package state persists dashboard state (watchlist entries, alert rules,
// baseline anchors, and UI preferences) in a SQLite database. Table names
// carry a version suffix so schema changes never collide with state written
// by prior versions.
package state

import (
	"database/sql"
	"fmt"

	"pricewatch/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Preference keys.
const (
	PrefTheme           = "theme"
	PrefIntervalSeconds = "interval_seconds"
	PrefRangeDays       = "range_days"
)

const schema = `
CREATE TABLE IF NOT EXISTS watchlist_v1 (
	position   INTEGER PRIMARY KEY,
	kind       TEXT NOT NULL,
	identifier TEXT NOT NULL,
	display    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS alerts_v1 (
	position      INTEGER PRIMARY KEY,
	watch_key     TEXT NOT NULL,
	threshold_pct REAL NOT NULL,
	direction     TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS baselines_v1 (
	watch_key TEXT PRIMARY KEY,
	price     REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS prefs_v1 (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// Store persists and restores dashboard state.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at dbPath and ensures the
// schema exists.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Watchlist
// ---------------------------------------------------------------------------

// SaveWatchlist replaces the persisted watchlist with refs, keeping their
// order. State is written through on every mutation, mirroring the original
// dashboard's save-on-change behaviour.
func (s *Store) SaveWatchlist(refs []domain.AssetRef) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM watchlist_v1`); err != nil {
		return err
	}
	for i, ref := range refs {
		if _, err := tx.Exec(
			`INSERT INTO watchlist_v1 (position, kind, identifier, display) VALUES (?, ?, ?, ?)`,
			i, string(ref.Kind), ref.Identifier, ref.DisplayName,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadWatchlist returns the persisted watchlist in insertion order.
func (s *Store) LoadWatchlist() ([]domain.AssetRef, error) {
	rows, err := s.db.Query(`SELECT kind, identifier, display FROM watchlist_v1 ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []domain.AssetRef
	for rows.Next() {
		var kind, identifier, display string
		if err := rows.Scan(&kind, &identifier, &display); err != nil {
			return nil, err
		}
		refs = append(refs, domain.AssetRef{
			Kind:        domain.AssetKind(kind),
			Identifier:  identifier,
			DisplayName: display,
		})
	}
	return refs, rows.Err()
}

// ---------------------------------------------------------------------------
// Alert rules
// ---------------------------------------------------------------------------

// SaveAlerts replaces the persisted alert rules, keeping their order.
func (s *Store) SaveAlerts(rules []domain.AlertRule) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM alerts_v1`); err != nil {
		return err
	}
	for i, rule := range rules {
		if _, err := tx.Exec(
			`INSERT INTO alerts_v1 (position, watch_key, threshold_pct, direction) VALUES (?, ?, ?, ?)`,
			i, rule.WatchKey, rule.ThresholdPct, string(rule.Direction),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadAlerts returns the persisted alert rules in insertion order.
func (s *Store) LoadAlerts() ([]domain.AlertRule, error) {
	rows, err := s.db.Query(`SELECT watch_key, threshold_pct, direction FROM alerts_v1 ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []domain.AlertRule
	for rows.Next() {
		var rule domain.AlertRule
		var direction string
		if err := rows.Scan(&rule.WatchKey, &rule.ThresholdPct, &direction); err != nil {
			return nil, err
		}
		rule.Direction = domain.AlertDirection(direction)
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// ---------------------------------------------------------------------------
// Baselines
// ---------------------------------------------------------------------------

// SaveBaselines upserts the given baseline anchors. Anchors for keys not in
// the map are left untouched; orphaned anchors are harmless.
func (s *Store) SaveBaselines(baselines map[string]float64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for key, price := range baselines {
		if _, err := tx.Exec(
			`INSERT INTO baselines_v1 (watch_key, price) VALUES (?, ?)
			 ON CONFLICT(watch_key) DO UPDATE SET price = excluded.price`,
			key, price,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadBaselines returns all persisted baseline anchors.
func (s *Store) LoadBaselines() (map[string]float64, error) {
	rows, err := s.db.Query(`SELECT watch_key, price FROM baselines_v1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	baselines := make(map[string]float64)
	for rows.Next() {
		var key string
		var price float64
		if err := rows.Scan(&key, &price); err != nil {
			return nil, err
		}
		baselines[key] = price
	}
	return baselines, rows.Err()
}

// ---------------------------------------------------------------------------
// Preferences
// ---------------------------------------------------------------------------

// SetPref stores one preference value.
func (s *Store) SetPref(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO prefs_v1 (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// Pref returns one preference value, or "" when unset.
func (s *Store) Pref(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM prefs_v1 WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// Package watchlist holds the ordered collection of tracked assets. It owns
// no polling logic; the scheduler snapshots it each cycle.
package watchlist

import (
	"errors"
	"fmt"

	"pricewatch/internal/domain"
)

// ErrDuplicateAsset is returned when an added asset's watch key already
// exists in the list. The list is left unchanged.
var ErrDuplicateAsset = errors.New("duplicate asset")

// List is an insertion-ordered set of assets, unique by watch key.
type List struct {
	refs []domain.AssetRef
	keys map[string]bool
}

// New creates an empty List.
func New() *List {
	return &List{keys: make(map[string]bool)}
}

// Add appends ref to the list. Adding an asset whose watch key is already
// present is a no-op that returns ErrDuplicateAsset.
func (l *List) Add(ref domain.AssetRef) error {
	key := ref.WatchKey()
	if l.keys[key] {
		return fmt.Errorf("%w: %s", ErrDuplicateAsset, key)
	}
	l.refs = append(l.refs, ref)
	l.keys[key] = true
	return nil
}

// Remove deletes the asset at index, preserving the order of the rest.
// Alert rules and baselines keyed by the removed asset are deliberately left
// alone; they are harmless orphans and remain individually removable.
func (l *List) Remove(index int) (domain.AssetRef, error) {
	if index < 0 || index >= len(l.refs) {
		return domain.AssetRef{}, fmt.Errorf("watchlist index %d out of range [0, %d)", index, len(l.refs))
	}
	ref := l.refs[index]
	l.refs = append(l.refs[:index], l.refs[index+1:]...)
	delete(l.keys, ref.WatchKey())
	return ref, nil
}

// Contains reports whether an asset with the given watch key is tracked.
func (l *List) Contains(watchKey string) bool {
	return l.keys[watchKey]
}

// ByKey returns the tracked asset with the given watch key.
func (l *List) ByKey(watchKey string) (domain.AssetRef, bool) {
	if !l.keys[watchKey] {
		return domain.AssetRef{}, false
	}
	for _, ref := range l.refs {
		if ref.WatchKey() == watchKey {
			return ref, true
		}
	}
	return domain.AssetRef{}, false
}

// Len returns the number of tracked assets.
func (l *List) Len() int { return len(l.refs) }

// Refs returns a copy of the tracked assets in insertion order.
func (l *List) Refs() []domain.AssetRef {
	out := make([]domain.AssetRef, len(l.refs))
	copy(out, l.refs)
	return out
}

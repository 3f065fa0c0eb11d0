// Package alert implements percentage-move alerting: per-rule threshold
// crossing detection against per-asset baseline anchors.
package alert

import (
	"fmt"
	"time"

	"pricewatch/internal/domain"
)

// Evaluator holds alert rules in insertion order together with the baseline
// anchor for each watched asset. Baselines are lazily initialized to the
// first observed price and reset only when a crossing fires, so a sustained
// move produces one event, not a storm. Two rules on the same watch key share
// one baseline; either rule firing re-anchors both.
type Evaluator struct {
	rules     []domain.AlertRule
	baselines map[string]float64
	now       func() time.Time
}

// NewEvaluator creates an Evaluator with no rules and no baselines.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		baselines: make(map[string]float64),
		now:       time.Now,
	}
}

// AddRule appends a rule. The threshold must be a positive percentage and
// the direction must be above or below.
func (e *Evaluator) AddRule(rule domain.AlertRule) error {
	if rule.ThresholdPct <= 0 {
		return fmt.Errorf("threshold must be > 0, got %v", rule.ThresholdPct)
	}
	if rule.Direction != domain.DirectionAbove && rule.Direction != domain.DirectionBelow {
		return fmt.Errorf("unknown direction %q", rule.Direction)
	}
	if rule.WatchKey == "" {
		return fmt.Errorf("rule has no watch key")
	}
	e.rules = append(e.rules, rule)
	return nil
}

// RemoveRule deletes the rule at index, preserving the order of the rest.
// The baseline for its watch key is kept; other rules may share it.
func (e *Evaluator) RemoveRule(index int) (domain.AlertRule, error) {
	if index < 0 || index >= len(e.rules) {
		return domain.AlertRule{}, fmt.Errorf("alert index %d out of range [0, %d)", index, len(e.rules))
	}
	rule := e.rules[index]
	e.rules = append(e.rules[:index], e.rules[index+1:]...)
	return rule, nil
}

// Rules returns a copy of the rules in insertion order.
func (e *Evaluator) Rules() []domain.AlertRule {
	out := make([]domain.AlertRule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Baselines returns a copy of the current baseline anchors, for persistence.
func (e *Evaluator) Baselines() map[string]float64 {
	out := make(map[string]float64, len(e.baselines))
	for k, v := range e.baselines {
		out[k] = v
	}
	return out
}

// RestoreBaselines seeds anchors loaded from persistence.
func (e *Evaluator) RestoreBaselines(baselines map[string]float64) {
	for k, v := range baselines {
		e.baselines[k] = v
	}
}

// Evaluate runs every rule once against the given last-price map and returns
// the crossings that fired, at most one per rule. Rules whose asset has no
// price yet are skipped; a rule seeing its asset for the first time only
// anchors the baseline and never fires. Evaluate never fails, and with an
// unchanged price map a second call emits nothing.
func (e *Evaluator) Evaluate(lastPrices map[string]float64) []domain.AlertEvent {
	var events []domain.AlertEvent

	for _, rule := range e.rules {
		last, ok := lastPrices[rule.WatchKey]
		if !ok {
			continue // not priced this session yet
		}

		base, ok := e.baselines[rule.WatchKey]
		if !ok {
			// First observation establishes the anchor, never fires.
			e.baselines[rule.WatchKey] = last
			continue
		}

		changePct := (last - base) / base * 100

		fired := false
		switch rule.Direction {
		case domain.DirectionAbove:
			fired = changePct >= rule.ThresholdPct
		case domain.DirectionBelow:
			fired = changePct <= -rule.ThresholdPct
		}
		if !fired {
			continue
		}

		events = append(events, domain.AlertEvent{
			WatchKey:     rule.WatchKey,
			Direction:    rule.Direction,
			ThresholdPct: rule.ThresholdPct,
			Baseline:     base,
			Price:        last,
			ChangePct:    changePct,
			Timestamp:    e.now(),
		})

		// Re-anchor so the next event needs a fresh move of the full
		// threshold. Shared across all rules on this watch key.
		e.baselines[rule.WatchKey] = last
	}

	return events
}

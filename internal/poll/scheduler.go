// Package poll owns the repeating fetch-all cycle: it polls every watchlist
// entry, maintains the last-price map and the active asset's chart buffer,
// runs alert evaluation once per cycle, and publishes results to subscribers.
package poll

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pricewatch/internal/alert"
	"pricewatch/internal/domain"
	"pricewatch/internal/series"
	"pricewatch/internal/source"
	"pricewatch/internal/watchlist"
)

// MinInterval is the floor for the polling period. A shorter configured
// period is clamped up to this, never honored.
const MinInterval = 5 * time.Second

// Fetcher fetches prices for any asset kind. *source.Router implements it.
type Fetcher interface {
	Current(ctx context.Context, ref domain.AssetRef) (domain.PriceSnapshot, error)
	History(ctx context.Context, ref domain.AssetRef, windowDays int) ([]domain.PricePoint, error)
}

// Persister writes state through on every mutation. *state.Store implements
// it. A persist failure is logged, never propagated: the in-memory state
// stays authoritative for the session.
type Persister interface {
	SaveWatchlist(refs []domain.AssetRef) error
	SaveAlerts(rules []domain.AlertRule) error
	SaveBaselines(baselines map[string]float64) error
}

// EventType tags an Event published to subscribers.
type EventType string

const (
	EventCycle EventType = "cycle" // a poll cycle completed
	EventAlert EventType = "alert" // a threshold crossing fired
)

// AssetStatus is the per-asset outcome of one poll cycle.
type AssetStatus struct {
	WatchKey  string             `json:"watchKey"`
	Display   string             `json:"display"`
	Price     float64            `json:"price,omitempty"`
	ChangePct *float64           `json:"changePct,omitempty"`
	Failure   source.FailureKind `json:"failure,omitempty"`
	Message   string             `json:"message,omitempty"`
}

// CycleSummary describes one completed poll cycle.
type CycleSummary struct {
	Timestamp time.Time     `json:"timestamp"`
	Assets    []AssetStatus `json:"assets"`
}

// Event is the wire format for subscriber messages.
type Event struct {
	Type  EventType          `json:"type"`
	Cycle *CycleSummary      `json:"cycle,omitempty"`
	Alert *domain.AlertEvent `json:"alert,omitempty"`
}

// View is the synchronous result of selecting an asset: a fresh quote plus
// the chart series for the selected time range.
type View struct {
	Ref      domain.AssetRef      `json:"ref"`
	Snapshot domain.PriceSnapshot `json:"snapshot"`
	Points   []series.Point       `json:"points"`
}

// Options configures a Scheduler.
type Options struct {
	Interval  time.Duration // clamped to MinInterval
	RangeDays int           // history window for the chart (1, 7, 30)
	SeriesCap int           // chart buffer capacity
}

// Scheduler coordinates the watchlist, providers, evaluator, and chart
// buffer. All shared state sits behind one mutex, so a user mutation is
// visible to the very next tick. Cycles run on a single loop goroutine and
// never overlap; only the per-asset fetches inside a cycle are concurrent.
type Scheduler struct {
	fetcher Fetcher
	persist Persister
	log     *slog.Logger

	mu         sync.Mutex
	list       *watchlist.List
	eval       *alert.Evaluator
	lastPrices map[string]float64
	active     *domain.AssetRef
	buffer     *series.Buffer
	interval   time.Duration
	rangeDays  int
	seriesCap  int
	running    bool

	intervalCh chan time.Duration
	pokeCh     chan struct{}
	stopCh     chan struct{}
	doneCh     chan struct{}

	subsMu    sync.Mutex
	nextSubID int
	subs      map[int]chan Event

	now func() time.Time
}

// New creates a Scheduler. persist may be nil for an ephemeral session.
func New(opts Options, fetcher Fetcher, persist Persister, log *slog.Logger) *Scheduler {
	interval := opts.Interval
	if interval < MinInterval {
		interval = MinInterval
	}
	rangeDays := opts.RangeDays
	if rangeDays == 0 {
		rangeDays = 7
	}
	seriesCap := opts.SeriesCap
	if seriesCap == 0 {
		seriesCap = 480
	}
	return &Scheduler{
		fetcher:    fetcher,
		persist:    persist,
		log:        log,
		list:       watchlist.New(),
		eval:       alert.NewEvaluator(),
		lastPrices: make(map[string]float64),
		interval:   interval,
		rangeDays:  rangeDays,
		seriesCap:  seriesCap,
		intervalCh: make(chan time.Duration, 1),
		pokeCh:     make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		subs:       make(map[int]chan Event),
		now:        time.Now,
	}
}

// Restore seeds state loaded from persistence. Invalid persisted rules are
// skipped with a warning rather than failing startup.
func (s *Scheduler) Restore(refs []domain.AssetRef, rules []domain.AlertRule, baselines map[string]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ref := range refs {
		if err := s.list.Add(ref); err != nil {
			s.log.Warn("skipping persisted watchlist entry", "watchKey", ref.WatchKey(), "error", err)
		}
	}
	for _, rule := range rules {
		if err := s.eval.AddRule(rule); err != nil {
			s.log.Warn("skipping persisted alert rule", "watchKey", rule.WatchKey, "error", err)
		}
	}
	s.eval.RestoreBaselines(baselines)
}

// ---------------------------------------------------------------------------
// Timer loop
// ---------------------------------------------------------------------------

// Start launches the polling loop. It is a no-op if already running.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	interval := s.interval
	s.mu.Unlock()

	go s.run(ctx, interval)
}

// Stop cancels the timer. In-flight fetches are not cancelled; a cycle that
// already started simply finishes.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	<-s.doneCh
}

func (s *Scheduler) run(ctx context.Context, interval time.Duration) {
	defer close(s.doneCh)

	// One ticker for the life of the loop. Period changes reset it in
	// place, so there is never a second live timer.
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case d := <-s.intervalCh:
			ticker.Reset(d)
		case <-s.pokeCh:
			s.runCycle(ctx)
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// Poke requests an immediate out-of-schedule cycle (after an asset is added,
// for example). Coalesces if one is already pending.
func (s *Scheduler) Poke() {
	select {
	case s.pokeCh <- struct{}{}:
	default:
	}
}

// SetInterval changes the polling period, clamping to MinInterval. The
// running timer is replaced; the next tick happens one full new period from
// now. Returns the period actually applied.
func (s *Scheduler) SetInterval(d time.Duration) time.Duration {
	if d < MinInterval {
		d = MinInterval
	}

	s.mu.Lock()
	s.interval = d
	running := s.running
	s.mu.Unlock()

	if running {
		// Replace a pending unconsumed reset rather than queueing two.
		select {
		case <-s.intervalCh:
		default:
		}
		s.intervalCh <- d
	}
	return d
}

// Interval returns the current polling period.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// ---------------------------------------------------------------------------
// Poll cycle
// ---------------------------------------------------------------------------

type fetchResult struct {
	ref  domain.AssetRef
	snap domain.PriceSnapshot
	err  error
}

// runCycle fetches every watchlist entry concurrently, waits for all of them,
// then applies successes, evaluates alerts once over the whole batch, and
// publishes a cycle summary. One asset's failure never aborts the others.
func (s *Scheduler) runCycle(ctx context.Context) {
	s.mu.Lock()
	refs := s.list.Refs()
	s.mu.Unlock()

	if len(refs) == 0 {
		return
	}

	results := make([]fetchResult, len(refs))
	var wg sync.WaitGroup
	for i, ref := range refs {
		wg.Add(1)
		go func(i int, ref domain.AssetRef) {
			defer wg.Done()
			snap, err := s.fetcher.Current(ctx, ref)
			results[i] = fetchResult{ref: ref, snap: snap, err: err}
		}(i, ref)
	}
	// Alert evaluation must never see a partially applied batch.
	wg.Wait()

	s.mu.Lock()
	statuses := make([]AssetStatus, 0, len(results))
	for _, res := range results {
		key := res.ref.WatchKey()
		st := AssetStatus{WatchKey: key, Display: res.ref.DisplayName}
		if res.err != nil {
			st.Failure = source.KindOf(res.err)
			st.Message = res.err.Error()
			s.log.Warn("poll fetch failed", "watchKey", key, "kind", st.Failure, "error", res.err)
			statuses = append(statuses, st)
			continue
		}
		s.lastPrices[key] = res.snap.Price
		st.Price = res.snap.Price
		st.ChangePct = res.snap.ChangePct

		// Live-append to the chart only for the active asset, and only on
		// success. A failed cycle is skipped, never zero-filled.
		if s.active != nil && s.buffer != nil && s.active.WatchKey() == key {
			s.buffer.Append(series.FormatLabel(res.snap.Timestamp), res.snap.Price)
		}
		statuses = append(statuses, st)
	}

	events := s.eval.Evaluate(s.lastPrices)
	baselines := s.eval.Baselines()
	s.mu.Unlock()

	if s.persist != nil {
		if err := s.persist.SaveBaselines(baselines); err != nil {
			s.log.Warn("persisting baselines", "error", err)
		}
	}

	now := s.now()
	s.broadcast(Event{Type: EventCycle, Cycle: &CycleSummary{Timestamp: now, Assets: statuses}})
	for i := range events {
		s.log.Info("alert fired",
			"watchKey", events[i].WatchKey,
			"direction", events[i].Direction,
			"thresholdPct", events[i].ThresholdPct,
			"changePct", events[i].ChangePct)
		s.broadcast(Event{Type: EventAlert, Alert: &events[i]})
	}
}

// ---------------------------------------------------------------------------
// Commands (invoked by the HTTP layer)
// ---------------------------------------------------------------------------

// AddAsset appends a new asset to the watchlist and requests an immediate
// poll so it gets priced without waiting a full period.
func (s *Scheduler) AddAsset(kind domain.AssetKind, identifier string) (domain.AssetRef, error) {
	if identifier == "" {
		return domain.AssetRef{}, fmt.Errorf("empty identifier")
	}
	ref := domain.NewAssetRef(kind, identifier)

	s.mu.Lock()
	err := s.list.Add(ref)
	refs := s.list.Refs()
	s.mu.Unlock()
	if err != nil {
		return domain.AssetRef{}, err
	}

	s.persistWatchlist(refs)
	s.Poke()
	return ref, nil
}

// RemoveAsset removes the asset at index. Alert rules and baselines keyed by
// it are left alone (orphan policy); its last-price entry goes stale
// harmlessly. If it was the active asset, the chart buffer is discarded.
func (s *Scheduler) RemoveAsset(index int) (domain.AssetRef, error) {
	s.mu.Lock()
	ref, err := s.list.Remove(index)
	if err != nil {
		s.mu.Unlock()
		return domain.AssetRef{}, err
	}
	if s.active != nil && s.active.WatchKey() == ref.WatchKey() {
		s.active = nil
		s.buffer = nil
	}
	refs := s.list.Refs()
	s.mu.Unlock()

	s.persistWatchlist(refs)
	return ref, nil
}

// SetAlert registers a new alert rule.
func (s *Scheduler) SetAlert(rule domain.AlertRule) error {
	s.mu.Lock()
	err := s.eval.AddRule(rule)
	rules := s.eval.Rules()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.persistAlerts(rules)
	return nil
}

// RemoveAlert removes the alert rule at index.
func (s *Scheduler) RemoveAlert(index int) (domain.AlertRule, error) {
	s.mu.Lock()
	rule, err := s.eval.RemoveRule(index)
	rules := s.eval.Rules()
	s.mu.Unlock()
	if err != nil {
		return domain.AlertRule{}, err
	}

	s.persistAlerts(rules)
	return rule, nil
}

// SelectAsset makes the asset with watchKey the active (charted) one. It
// fetches history for the current range plus a fresh quote out-of-band,
// replacing the chart buffer wholesale. Errors are returned synchronously to
// the caller, since this is an explicit user action unlike background polling.
func (s *Scheduler) SelectAsset(ctx context.Context, watchKey string) (View, error) {
	s.mu.Lock()
	ref, ok := s.list.ByKey(watchKey)
	rangeDays := s.rangeDays
	s.mu.Unlock()
	if !ok {
		return View{}, fmt.Errorf("unknown watch key %q", watchKey)
	}

	points, err := s.fetcher.History(ctx, ref, rangeDays)
	if err != nil {
		return View{}, err
	}
	snap, err := s.fetcher.Current(ctx, ref)
	if err != nil {
		return View{}, err
	}

	s.mu.Lock()
	// The previous buffer is discarded, not cleared; switching assets never
	// merges series.
	buf := series.FromHistory(s.seriesCap, points)
	buf.Append(series.FormatLabel(snap.Timestamp), snap.Price)
	s.active = &ref
	s.buffer = buf
	s.lastPrices[watchKey] = snap.Price
	view := View{Ref: ref, Snapshot: snap, Points: buf.Points()}
	s.mu.Unlock()

	return view, nil
}

// SetRange changes the chart history window to days (1, 7, or 30) and, when
// an asset is active, reloads its series for the new window.
func (s *Scheduler) SetRange(ctx context.Context, days int) (View, error) {
	switch days {
	case 1, 7, 30:
	default:
		return View{}, fmt.Errorf("unsupported range %d days", days)
	}

	s.mu.Lock()
	s.rangeDays = days
	var activeKey string
	if s.active != nil {
		activeKey = s.active.WatchKey()
	}
	s.mu.Unlock()

	if activeKey == "" {
		return View{}, nil
	}
	return s.SelectAsset(ctx, activeKey)
}

// RangeDays returns the current chart history window.
func (s *Scheduler) RangeDays() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rangeDays
}

func (s *Scheduler) persistWatchlist(refs []domain.AssetRef) {
	if s.persist == nil {
		return
	}
	if err := s.persist.SaveWatchlist(refs); err != nil {
		s.log.Warn("persisting watchlist", "error", err)
	}
}

func (s *Scheduler) persistAlerts(rules []domain.AlertRule) {
	if s.persist == nil {
		return
	}
	if err := s.persist.SaveAlerts(rules); err != nil {
		s.log.Warn("persisting alerts", "error", err)
	}
}

// ---------------------------------------------------------------------------
// State accessors (read by the HTTP layer)
// ---------------------------------------------------------------------------

// Watchlist returns the tracked assets in insertion order.
func (s *Scheduler) Watchlist() []domain.AssetRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list.Refs()
}

// Alerts returns the alert rules in insertion order.
func (s *Scheduler) Alerts() []domain.AlertRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eval.Rules()
}

// LastPrices returns a copy of the last-price map.
func (s *Scheduler) LastPrices() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]float64, len(s.lastPrices))
	for k, v := range s.lastPrices {
		out[k] = v
	}
	return out
}

// ActiveKey returns the watch key of the active asset, or "".
func (s *Scheduler) ActiveKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return ""
	}
	return s.active.WatchKey()
}

// SeriesPoints returns the active chart series oldest-first, or nil when no
// asset is active.
func (s *Scheduler) SeriesPoints() []series.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buffer == nil {
		return nil
	}
	return s.buffer.Points()
}

// ---------------------------------------------------------------------------
// Pub/sub
// ---------------------------------------------------------------------------

// Subscribe returns a channel that receives events. bufSize controls the
// channel buffer; slow consumers will have events dropped.
func (s *Scheduler) Subscribe(bufSize int) (int, <-chan Event) {
	ch := make(chan Event, bufSize)
	s.subsMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = ch
	s.subsMu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *Scheduler) Unsubscribe(id int) {
	s.subsMu.Lock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
	s.subsMu.Unlock()
}

// broadcast sends an event to all subscribers non-blocking (drop on full).
func (s *Scheduler) broadcast(e Event) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- e:
		default:
			// Slow consumer, drop event.
		}
	}
}

// Package simulator orchestrates the market data feed, the rolling
// statistics engine, and the cost models into one pipeline: every orderbook
// snapshot received from the venue produces exactly one simulated cost
// estimate. The whole pipeline runs synchronously on the feed's network
// goroutine, so the per-update latency it reports is exact.
package simulator

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Eternal-Darkness-07/GoQuant/internal/domain"
	"github.com/Eternal-Darkness-07/GoQuant/internal/feed"
	"github.com/Eternal-Darkness-07/GoQuant/internal/model"
	"github.com/Eternal-Darkness-07/GoQuant/internal/stats"
)

// Operator-facing bounds on the simulated order notional.
const (
	MinQuantityUSD = 1.0
	MaxQuantityUSD = 10_000.0
)

// Listener receives every simulation result, synchronously on the feed's
// network goroutine, immediately after the result is stored as latest.
// Implementations must not block; anything slow belongs behind a buffer.
type Listener interface {
	OnResult(domain.SimulationResult)
}

// Config assembles the simulator and the components it owns.
type Config struct {
	Feed          feed.Config
	WindowSize    int                     // snapshot/result history capacity
	ScheduleSteps int                     // default slice count for execution schedules
	Params        domain.SimulationParams // initial operator parameters
	Impact        model.ImpactParams
	Symbols       []string // instruments UpdateParams accepts
}

// Simulator owns the feed client, the statistics engine, and the impact and
// cost models. Operator parameters and the latest output live behind
// independent locks; no lock is ever held across a model call or a listener
// invocation, and no two of them are held at once.
type Simulator struct {
	cfg    Config
	logger *slog.Logger

	feed   *feed.Client
	engine *stats.Engine
	impact *model.Impact
	cost   *model.Cost

	running atomic.Bool

	paramsMu sync.RWMutex
	params   domain.SimulationParams

	latestMu  sync.RWMutex
	latest    domain.SimulationResult
	hasResult bool

	historyMu sync.Mutex
	results   []domain.SimulationResult

	listenersMu sync.RWMutex
	listeners   []Listener

	symbols map[string]bool

	// Monotonic counters for the running mean pipeline latency.
	updates      atomic.Uint64
	latencyTotal atomic.Int64 // microseconds
}

// New builds a simulator and the components it owns. recorder instruments the
// feed client and may be nil. The initial parameters are taken from cfg and
// propagated into the models exactly as UpdateParams would.
func New(cfg Config, recorder feed.Recorder, logger *slog.Logger) *Simulator {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = stats.DefaultWindowSize
	}
	if cfg.ScheduleSteps < 1 {
		cfg.ScheduleSteps = model.DefaultScheduleSteps
	}

	symbols := make(map[string]bool, len(cfg.Symbols))
	for _, sym := range cfg.Symbols {
		symbols[sym] = true
	}

	impact := model.NewImpact(cfg.Impact)
	s := &Simulator{
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "simulator")),
		engine:  stats.NewEngine(cfg.WindowSize),
		impact:  impact,
		cost:    model.NewCost(impact),
		params:  cfg.Params,
		results: make([]domain.SimulationResult, 0, cfg.WindowSize),
		symbols: symbols,
	}
	s.feed = feed.New(cfg.Feed, s.ProcessSnapshot, recorder, logger)

	s.propagate(cfg.Params)
	return s
}

// AddListener registers a result listener. Listeners added while the feed is
// running start receiving results from the next processed update.
func (s *Simulator) AddListener(l Listener) {
	if l == nil {
		return
	}
	s.listenersMu.Lock()
	s.listeners = append(s.listeners, l)
	s.listenersMu.Unlock()
}

// Start begins processing: a no-op when already running, otherwise it flips
// the running flag and starts the feed client.
func (s *Simulator) Start() {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	s.feed.Start()
	s.logger.Info("simulator started",
		slog.String("symbol", s.cfg.Feed.Symbol),
		slog.Int("window_size", s.cfg.WindowSize),
	)
}

// Stop halts processing. It joins the feed's network goroutine, so once Stop
// returns no further result is stored or delivered to listeners. The latest
// output and history stay readable while stopped; a stopped simulator can be
// started again.
func (s *Simulator) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	s.feed.Stop()
	s.logger.Info("simulator stopped", slog.Uint64("updates", s.updates.Load()))
}

// Running reports whether the simulator is currently processing updates.
func (s *Simulator) Running() bool {
	return s.running.Load()
}

// ProcessSnapshot runs the full pipeline for one orderbook snapshot: rolling
// statistics, cost estimation, result storage, listener fan-out. It is the
// feed client's snapshot handler and runs on the network goroutine; it is
// exported so replays and tests can drive the pipeline directly. Snapshots
// arriving while the simulator is stopped are discarded.
func (s *Simulator) ProcessSnapshot(snap domain.OrderbookSnapshot) {
	if !s.running.Load() {
		return
	}

	start := time.Now()
	st := s.engine.Update(snap)

	s.paramsMu.RLock()
	params := s.params
	s.paramsMu.RUnlock()

	res := s.compute(params, st, s.cost, start)

	s.latestMu.Lock()
	s.latest = res
	s.hasResult = true
	s.latestMu.Unlock()

	s.historyMu.Lock()
	s.results = append(s.results, res)
	if len(s.results) > s.cfg.WindowSize {
		s.results = s.results[1:]
	}
	s.historyMu.Unlock()

	s.updates.Add(1)
	s.latencyTotal.Add(res.LatencyMicros)

	for _, l := range s.snapshotListeners() {
		l.OnResult(res)
	}
}

// UpdateParams validates and installs a new parameter set, then propagates
// the derived configuration: assumed volatility into the impact model and the
// fee-tier rates into the cost model. The very next processed update reflects
// the new configuration. The stored parameters are swapped atomically under
// one lock, so a concurrent ProcessSnapshot sees either the old set or the
// new one, never a mixture.
func (s *Simulator) UpdateParams(p domain.SimulationParams) error {
	if err := s.validateParams(p); err != nil {
		return err
	}

	s.paramsMu.Lock()
	s.params = p
	s.paramsMu.Unlock()

	s.propagate(p)

	s.logger.Info("parameters updated",
		slog.String("symbol", p.Symbol),
		slog.Float64("quantity_usd", p.QuantityUSD),
		slog.Float64("volatility", p.Volatility),
		slog.Int("fee_tier", p.FeeTier),
	)
	return nil
}

// Params returns a copy of the current operator parameters.
func (s *Simulator) Params() domain.SimulationParams {
	s.paramsMu.RLock()
	defer s.paramsMu.RUnlock()
	return s.params
}

// Latest returns the most recent simulation result. The second return value
// is false until the first update of the current process has been handled.
func (s *Simulator) Latest() (domain.SimulationResult, bool) {
	s.latestMu.RLock()
	defer s.latestMu.RUnlock()
	return s.latest, s.hasResult
}

// Results returns up to limit of the most recent results, oldest first.
// limit <= 0 returns the full retained window.
func (s *Simulator) Results(limit int) []domain.SimulationResult {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	n := len(s.results)
	if limit > 0 && limit < n {
		n = limit
	}
	if n == 0 {
		return nil
	}
	out := make([]domain.SimulationResult, n)
	copy(out, s.results[len(s.results)-n:])
	return out
}

// Updates returns how many snapshots have been processed since construction.
func (s *Simulator) Updates() uint64 {
	return s.updates.Load()
}

// AverageLatency returns the mean pipeline latency across every update ever
// processed. The counters behind it are monotonic and survive Stop/Start.
func (s *Simulator) AverageLatency() time.Duration {
	updates := s.updates.Load()
	if updates == 0 {
		return 0
	}
	mean := s.latencyTotal.Load() / int64(updates)
	return time.Duration(mean) * time.Microsecond
}

// Stats returns the most recent orderbook statistics.
func (s *Simulator) Stats() (domain.OrderbookStats, bool) {
	return s.engine.Latest()
}

// Orderbook returns the most recent raw snapshot.
func (s *Simulator) Orderbook() (domain.OrderbookSnapshot, bool) {
	return s.engine.LatestSnapshot()
}

// History returns the retained snapshot window, oldest first.
func (s *Simulator) History() []domain.OrderbookSnapshot {
	return s.engine.History()
}

// HistoryLen returns the current snapshot window occupancy.
func (s *Simulator) HistoryLen() int {
	return s.engine.Len()
}

// WindowSize returns the configured history capacity.
func (s *Simulator) WindowSize() int {
	return s.engine.WindowSize()
}

// FeedStatus reports the market data connection state and counters.
func (s *Simulator) FeedStatus() domain.FeedStatus {
	return s.feed.Status()
}

// Healthy reports whether the feed is connected and receiving traffic.
func (s *Simulator) Healthy() bool {
	return s.feed.IsHealthy()
}

// Schedule computes an optimal execution schedule for a buy of size base
// units against the latest market state, sliced into steps tranches. steps
// <= 0 uses the configured default.
func (s *Simulator) Schedule(size float64, steps int) ([]float64, error) {
	st, ok := s.engine.Latest()
	if !ok {
		return nil, domain.ErrNoSnapshot
	}
	if steps <= 0 {
		steps = s.cfg.ScheduleSteps
	}
	return s.impact.OptimalSchedule(size, domain.OrderSideBuy, st, steps), nil
}

// Simulate runs one what-if estimate for the given parameters against the
// latest market statistics. It builds throwaway models so the stored
// parameters, the active fee tier, and the result history are untouched.
func (s *Simulator) Simulate(p domain.SimulationParams) (domain.SimulationResult, error) {
	if err := s.validateParams(p); err != nil {
		return domain.SimulationResult{}, err
	}
	st, ok := s.engine.Latest()
	if !ok {
		return domain.SimulationResult{}, domain.ErrNoSnapshot
	}

	ip := s.impact.Params()
	ip.Volatility = p.Volatility
	cost := model.NewCost(model.NewImpact(ip))
	cost.SetFeeTier(p.FeeTier)

	return s.compute(p, st, cost, time.Now()), nil
}

// compute prices one hypothetical market buy against the given statistics.
// The USD notional is converted to base units at the mid-price (zero base
// quantity on a degenerate book, which collapses every cost component to its
// floor), then the cost model produces the breakdown in one consistent shot.
func (s *Simulator) compute(params domain.SimulationParams, st domain.OrderbookStats, cost *model.Cost, start time.Time) domain.SimulationResult {
	var baseQty float64
	if st.MidPrice > 0 {
		baseQty = params.QuantityUSD / st.MidPrice
	}

	breakdown := cost.TotalCost(baseQty, domain.OrderSideBuy, st)
	maker := cost.MakerProportion(baseQty, domain.OrderSideBuy, st)

	return domain.SimulationResult{
		Slippage:        breakdown.Slippage,
		Fees:            breakdown.Fees,
		Impact:          breakdown.Impact,
		NetCost:         breakdown.Total,
		MakerProportion: maker,
		LatencyMicros:   time.Since(start).Microseconds(),
		MidPrice:        st.MidPrice,
		Spread:          st.Spread,
		Volatility:      st.Volatility,
		ComputedAt:      time.Now().UTC(),
	}
}

// propagate pushes parameter-derived configuration into the owned models.
func (s *Simulator) propagate(p domain.SimulationParams) {
	ip := s.impact.Params()
	ip.Volatility = p.Volatility
	s.impact.SetParams(ip)
	s.cost.SetFeeTier(p.FeeTier)
}

// validateParams layers the operator-facing rules on top of the structural
// checks: notional within the supported range and symbol on the allow-list.
// Fee tiers above the published schedule are accepted; the rates clamp to the
// cheapest tier.
func (s *Simulator) validateParams(p domain.SimulationParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.QuantityUSD < MinQuantityUSD || p.QuantityUSD > MaxQuantityUSD {
		return fmt.Errorf("%w: quantity %v USD outside [%v, %v]",
			domain.ErrInvalidParams, p.QuantityUSD, MinQuantityUSD, MaxQuantityUSD)
	}
	if len(s.symbols) > 0 && !s.symbols[p.Symbol] {
		return fmt.Errorf("%w: symbol %q not in allowed set", domain.ErrInvalidParams, p.Symbol)
	}
	return nil
}

// snapshotListeners copies the listener list so no lock is held while
// listeners run.
func (s *Simulator) snapshotListeners() []Listener {
	s.listenersMu.RLock()
	defer s.listenersMu.RUnlock()
	if len(s.listeners) == 0 {
		return nil
	}
	out := make([]Listener, len(s.listeners))
	copy(out, s.listeners)
	return out
}

package stats

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Eternal-Darkness-07/GoQuant/internal/domain"
)

const (
	// DefaultWindowSize is the number of snapshots retained for rolling statistics.
	DefaultWindowSize = 100

	// vwapLevels caps how many levels from the top of each side feed the VWAP.
	vwapLevels = 10
)

// Engine maintains a bounded FIFO window of recent orderbook snapshots and
// derives per-update statistics. Update is called on the feed's network
// goroutine; the read accessors may be called concurrently from API handlers.
type Engine struct {
	mu         sync.RWMutex
	window     []domain.OrderbookSnapshot
	windowSize int

	latestMu sync.RWMutex
	latest   domain.OrderbookStats
	hasStats bool

	// Monotonic counters for the running mean processing time.
	updates      atomic.Uint64
	latencyTotal atomic.Int64 // microseconds
}

// NewEngine creates an Engine retaining windowSize snapshots. A non-positive
// windowSize falls back to DefaultWindowSize.
func NewEngine(windowSize int) *Engine {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Engine{
		window:     make([]domain.OrderbookSnapshot, 0, windowSize),
		windowSize: windowSize,
	}
}

// Update appends the snapshot to the window, evicting the oldest entry once
// the window is full, and computes the statistics for this update. A snapshot
// missing either side still occupies a window slot but yields all-zero
// statistics; degenerate books never produce NaN or Inf.
func (e *Engine) Update(snap domain.OrderbookSnapshot) domain.OrderbookStats {
	start := time.Now()

	e.mu.Lock()
	e.window = append(e.window, snap)
	if len(e.window) > e.windowSize {
		e.window = e.window[1:]
	}
	var volatility float64
	if snap.TwoSided() {
		volatility = volatilityFromWindow(e.window)
	}
	e.mu.Unlock()

	var s domain.OrderbookStats
	if snap.TwoSided() {
		totalBid, bidVWAP := sideStats(snap.Bids)
		totalAsk, askVWAP := sideStats(snap.Asks)

		var imbalance float64
		if totalAsk > 0 {
			imbalance = totalBid / totalAsk
		}

		s = domain.OrderbookStats{
			BestBid:      snap.BestBid(),
			BestAsk:      snap.BestAsk(),
			MidPrice:     snap.MidPrice(),
			Spread:       snap.Spread(),
			BidVWAP:      bidVWAP,
			AskVWAP:      askVWAP,
			TotalBidSize: totalBid,
			TotalAskSize: totalAsk,
			Imbalance:    imbalance,
			Volatility:   volatility,
		}
	}

	elapsed := time.Since(start).Microseconds()
	s.LatencyMicros = elapsed
	e.latencyTotal.Add(elapsed)
	e.updates.Add(1)

	e.latestMu.Lock()
	e.latest = s
	e.hasStats = true
	e.latestMu.Unlock()

	return s
}

// Latest returns the most recently computed statistics. The second return
// value is false until the first Update.
func (e *Engine) Latest() (domain.OrderbookStats, bool) {
	e.latestMu.RLock()
	defer e.latestMu.RUnlock()
	return e.latest, e.hasStats
}

// History returns a copy of the retained snapshot window, oldest first.
func (e *Engine) History() []domain.OrderbookSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.window) == 0 {
		return nil
	}
	out := make([]domain.OrderbookSnapshot, len(e.window))
	copy(out, e.window)
	return out
}

// LatestSnapshot returns the most recently ingested raw snapshot. The second
// return value is false until the first Update.
func (e *Engine) LatestSnapshot() (domain.OrderbookSnapshot, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if len(e.window) == 0 {
		return domain.OrderbookSnapshot{}, false
	}
	return e.window[len(e.window)-1], true
}

// Len returns the number of snapshots currently retained.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.window)
}

// WindowSize returns the configured window capacity.
func (e *Engine) WindowSize() int {
	return e.windowSize
}

// Updates returns how many snapshots have been processed since construction.
func (e *Engine) Updates() uint64 {
	return e.updates.Load()
}

// AverageLatency returns the mean processing time across every update ever
// processed. The underlying counters are monotonic and never reset.
func (e *Engine) AverageLatency() time.Duration {
	updates := e.updates.Load()
	if updates == 0 {
		return 0
	}
	mean := e.latencyTotal.Load() / int64(updates)
	return time.Duration(mean) * time.Microsecond
}

// sideStats computes the total size across all levels and the
// volume-weighted average price over the top vwapLevels levels of one book
// side in a single pass. A zero total size over those levels yields a zero
// VWAP.
func sideStats(levels []domain.PriceLevel) (total, vwap float64) {
	var notional, vwapSize float64
	for i, lvl := range levels {
		total += lvl.Size
		if i < vwapLevels {
			notional += lvl.Price * lvl.Size
			vwapSize += lvl.Size
		}
	}
	if vwapSize > 0 {
		vwap = notional / vwapSize
	}
	return total, vwap
}

// volatilityFromWindow computes the sample standard deviation of simple
// mid-price returns across the window. Snapshots missing either book side
// are skipped when extracting the mid-price series; fewer than two usable
// returns yields 0.
func volatilityFromWindow(window []domain.OrderbookSnapshot) float64 {
	mids := make([]float64, 0, len(window))
	for _, s := range window {
		if !s.TwoSided() {
			continue
		}
		if m := s.MidPrice(); m > 0 {
			mids = append(mids, m)
		}
	}
	if len(mids) < 3 {
		return 0
	}

	returns := make([]float64, 0, len(mids)-1)
	for i := 1; i < len(mids); i++ {
		returns = append(returns, (mids[i]-mids[i-1])/mids[i-1])
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)
	return math.Sqrt(variance)
}

package stats

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Eternal-Darkness-07/GoQuant/internal/domain"
)

// book builds a two-sided snapshot with a single level per side.
func book(bid, ask, size float64) domain.OrderbookSnapshot {
	return domain.OrderbookSnapshot{
		Exchange: "OKX",
		Symbol:   "BTC-USDT",
		Bids:     []domain.PriceLevel{{Price: bid, Size: size}},
		Asks:     []domain.PriceLevel{{Price: ask, Size: size}},
	}
}

// bookAtMid builds a snapshot whose mid-price is exactly mid.
func bookAtMid(mid float64) domain.OrderbookSnapshot {
	return book(mid-0.5, mid+0.5, 1.0)
}

func TestEngineUpdateComputesStats(t *testing.T) {
	e := NewEngine(10)

	snap := domain.OrderbookSnapshot{
		Exchange: "OKX",
		Symbol:   "BTC-USDT",
		Bids: []domain.PriceLevel{
			{Price: 100.0, Size: 2.0},
			{Price: 99.0, Size: 4.0},
		},
		Asks: []domain.PriceLevel{
			{Price: 101.0, Size: 1.0},
			{Price: 102.0, Size: 3.0},
		},
	}
	s := e.Update(snap)

	assert.Equal(t, 100.0, s.BestBid)
	assert.Equal(t, 101.0, s.BestAsk)
	assert.Equal(t, 100.5, s.MidPrice)
	assert.InDelta(t, 1.0, s.Spread, 1e-12)
	assert.Equal(t, 6.0, s.TotalBidSize)
	assert.Equal(t, 4.0, s.TotalAskSize)
	assert.InDelta(t, 1.5, s.Imbalance, 1e-12)
	// VWAP weighs price by size: (100*2 + 99*4) / 6, (101*1 + 102*3) / 4.
	assert.InDelta(t, 99.333333333, s.BidVWAP, 1e-6)
	assert.InDelta(t, 101.75, s.AskVWAP, 1e-12)
	assert.GreaterOrEqual(t, s.LatencyMicros, int64(0))

	latest, ok := e.Latest()
	require.True(t, ok)
	assert.Equal(t, s, latest)
}

func TestEngineVWAPEqualSizesIsMeanPrice(t *testing.T) {
	e := NewEngine(10)

	snap := domain.OrderbookSnapshot{
		Bids: []domain.PriceLevel{
			{Price: 100.0, Size: 1.0},
			{Price: 98.0, Size: 1.0},
			{Price: 96.0, Size: 1.0},
		},
		Asks: []domain.PriceLevel{
			{Price: 101.0, Size: 1.0},
			{Price: 103.0, Size: 1.0},
		},
	}
	s := e.Update(snap)

	assert.InDelta(t, 98.0, s.BidVWAP, 1e-12)
	assert.InDelta(t, 102.0, s.AskVWAP, 1e-12)
}

func TestEngineOneSidedBookYieldsZeroStats(t *testing.T) {
	tests := []struct {
		name string
		snap domain.OrderbookSnapshot
	}{
		{"empty book", domain.OrderbookSnapshot{}},
		{"bids only", domain.OrderbookSnapshot{
			Bids: []domain.PriceLevel{{Price: 100.0, Size: 1.0}},
		}},
		{"asks only", domain.OrderbookSnapshot{
			Asks: []domain.PriceLevel{{Price: 101.0, Size: 1.0}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(10)
			s := e.Update(tt.snap)

			assert.Zero(t, s.BestBid)
			assert.Zero(t, s.BestAsk)
			assert.Zero(t, s.MidPrice)
			assert.Zero(t, s.Spread)
			assert.Zero(t, s.BidVWAP)
			assert.Zero(t, s.AskVWAP)
			assert.Zero(t, s.Imbalance)
			assert.Zero(t, s.Volatility)
			assert.False(t, math.IsNaN(s.Imbalance))

			// The snapshot still occupies a window slot and counts as an
			// update.
			assert.Equal(t, 1, e.Len())
			assert.Equal(t, uint64(1), e.Updates())
		})
	}
}

func TestEngineVolatility(t *testing.T) {
	t.Run("fewer than three mids is zero", func(t *testing.T) {
		e := NewEngine(10)
		e.Update(bookAtMid(100))
		s := e.Update(bookAtMid(101))
		assert.Zero(t, s.Volatility)
	})

	t.Run("constant mids is zero", func(t *testing.T) {
		e := NewEngine(10)
		var s domain.OrderbookStats
		for i := 0; i < 5; i++ {
			s = e.Update(bookAtMid(100))
		}
		assert.Zero(t, s.Volatility)
	})

	t.Run("sample stddev of simple returns", func(t *testing.T) {
		e := NewEngine(10)
		mids := []float64{100, 101, 102, 101.5}
		var s domain.OrderbookStats
		for _, m := range mids {
			s = e.Update(bookAtMid(m))
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
		want := math.Sqrt(variance)

		assert.InDelta(t, want, s.Volatility, 1e-12)
	})

	t.Run("one-sided snapshots are skipped in the series", func(t *testing.T) {
		withGap := NewEngine(10)
		withGap.Update(bookAtMid(100))
		withGap.Update(domain.OrderbookSnapshot{
			Bids: []domain.PriceLevel{{Price: 99.0, Size: 1.0}},
		})
		withGap.Update(bookAtMid(101))
		gapStats := withGap.Update(bookAtMid(102))

		contiguous := NewEngine(10)
		contiguous.Update(bookAtMid(100))
		contiguous.Update(bookAtMid(101))
		wantStats := contiguous.Update(bookAtMid(102))

		assert.InDelta(t, wantStats.Volatility, gapStats.Volatility, 1e-12)
	})
}

func TestEngineWindowBound(t *testing.T) {
	const size = 5
	e := NewEngine(size)

	for i := 0; i < 50; i++ {
		e.Update(bookAtMid(100 + float64(i)))
		assert.LessOrEqual(t, e.Len(), size)
	}

	require.Equal(t, size, e.Len())
	hist := e.History()
	require.Len(t, hist, size)
	// Oldest first: mids 145..149 survive.
	for i, snap := range hist {
		assert.InDelta(t, 145+float64(i), snap.MidPrice(), 1e-12, "window slot %d", i)
	}
	assert.Equal(t, uint64(50), e.Updates())
}

func TestEngineHistoryReturnsCopy(t *testing.T) {
	e := NewEngine(10)
	e.Update(bookAtMid(100))

	hist := e.History()
	require.Len(t, hist, 1)
	hist[0] = domain.OrderbookSnapshot{Symbol: "clobbered"}

	again := e.History()
	require.Len(t, again, 1)
	assert.NotEqual(t, "clobbered", again[0].Symbol)
}

func TestEngineLatestSnapshot(t *testing.T) {
	e := NewEngine(10)

	_, ok := e.LatestSnapshot()
	assert.False(t, ok)

	for i := 0; i < 3; i++ {
		e.Update(bookAtMid(100 + float64(i)))
	}
	snap, ok := e.LatestSnapshot()
	require.True(t, ok)
	assert.InDelta(t, 102.0, snap.MidPrice(), 1e-12)
}

func TestEngineAverageLatency(t *testing.T) {
	e := NewEngine(10)
	assert.Zero(t, e.AverageLatency())

	for i := 0; i < 10; i++ {
		e.Update(bookAtMid(100))
	}
	assert.GreaterOrEqual(t, int64(e.AverageLatency()), int64(0))
}

func TestEngineDefaultWindowSize(t *testing.T) {
	for _, size := range []int{0, -7} {
		t.Run(fmt.Sprintf("size %d", size), func(t *testing.T) {
			e := NewEngine(size)
			assert.Equal(t, DefaultWindowSize, e.WindowSize())
		})
	}
}

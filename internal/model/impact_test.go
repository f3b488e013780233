package model

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Eternal-Darkness-07/GoQuant/internal/domain"
)

// balancedStats is a liquid, symmetric market state for impact tests.
func balancedStats(volatility float64) domain.OrderbookStats {
	return domain.OrderbookStats{
		BestBid:      99.5,
		BestAsk:      100.5,
		MidPrice:     100.0,
		Spread:       1.0,
		TotalBidSize: 5.0,
		TotalAskSize: 5.0,
		Imbalance:    1.0,
		Volatility:   volatility,
	}
}

func TestMarketImpactSignedByDirection(t *testing.T) {
	m := NewImpact(DefaultImpactParams())
	st := balancedStats(0.2)

	// size 4 against depth 10: permanent = 0.1*(1+0.4)*4*0.2, temporary =
	// 0.1*0.2*sqrt(4)*(1+1/100)*1.
	buy := m.MarketImpact(4.0, domain.OrderSideBuy, st)
	sell := m.MarketImpact(4.0, domain.OrderSideSell, st)

	assert.InDelta(t, 0.112+0.0404, buy, 1e-12)
	assert.InDelta(t, -(0.112 + 0.0404), sell, 1e-12)
}

func TestMarketImpactZeroVolatilityIsZero(t *testing.T) {
	m := NewImpact(DefaultImpactParams())
	assert.Zero(t, m.MarketImpact(4.0, domain.OrderSideBuy, balancedStats(0)))
}

func TestMarketImpactScalesWithDepthConsumption(t *testing.T) {
	m := NewImpact(DefaultImpactParams())
	st := balancedStats(0.2)

	// Per-unit impact grows as the order consumes more of the visible depth.
	small := m.MarketImpact(1.0, domain.OrderSideBuy, st)
	large := m.MarketImpact(8.0, domain.OrderSideBuy, st)
	assert.Greater(t, large/8.0, small/1.0)
}

func TestMarketImpactFiniteOnDegenerateInputs(t *testing.T) {
	m := NewImpact(DefaultImpactParams())

	tests := []struct {
		name string
		st   domain.OrderbookStats
	}{
		{"all zero", domain.OrderbookStats{}},
		{"no depth", domain.OrderbookStats{MidPrice: 100, Spread: 1, Volatility: 0.5}},
		{"one-sided", domain.OrderbookStats{TotalBidSize: 10, Volatility: 0.5}},
		{"extreme imbalance", domain.OrderbookStats{
			MidPrice: 100, Spread: 0.1, TotalBidSize: 1e9, TotalAskSize: 1e-9,
			Imbalance: 1e18, Volatility: 1,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := m.MarketImpact(100.0, domain.OrderSideBuy, tt.st)
			assert.False(t, math.IsNaN(v), "impact must not be NaN")
			assert.False(t, math.IsInf(v, 0), "impact must not be Inf")
			assert.GreaterOrEqual(t, v, 0.0, "buy impact must be non-negative")
		})
	}
}

func TestOptimalScheduleSumsToSize(t *testing.T) {
	m := NewImpact(ImpactParams{
		PermanentFactor: 0.1,
		TemporaryFactor: 0.1,
		Volatility:      0.3,
		TimeHorizon:     1.0,
		RiskAversion:    1.0,
	})
	st := balancedStats(0.3)

	for _, size := range []float64{1, 3.1415, 250, 1e6} {
		for _, steps := range []int{1, 2, 7, 10, 100} {
			t.Run(fmt.Sprintf("size %v steps %d", size, steps), func(t *testing.T) {
				schedule := m.OptimalSchedule(size, domain.OrderSideBuy, st, steps)
				require.Len(t, schedule, steps)

				var sum float64
				for _, slice := range schedule {
					assert.GreaterOrEqual(t, slice, 0.0)
					sum += slice
				}
				assert.InDelta(t, size, sum, 1e-9*size)
			})
		}
	}
}

func TestOptimalScheduleFrontLoaded(t *testing.T) {
	m := NewImpact(ImpactParams{
		PermanentFactor: 0.1,
		TemporaryFactor: 0.1,
		Volatility:      0.5,
		TimeHorizon:     2.0,
		RiskAversion:    1.5,
	})
	schedule := m.OptimalSchedule(100.0, domain.OrderSideBuy, balancedStats(0.5), 10)
	require.Len(t, schedule, 10)

	for i := 1; i < len(schedule); i++ {
		assert.LessOrEqual(t, schedule[i], schedule[i-1]+1e-9,
			"slice %d must not exceed slice %d", i, i-1)
	}
	assert.Greater(t, schedule[0], schedule[len(schedule)-1])
}

func TestOptimalScheduleUniformWithoutRisk(t *testing.T) {
	// Zero assumed volatility means kappa is zero and every slice is equal.
	m := NewImpact(DefaultImpactParams())
	schedule := m.OptimalSchedule(50.0, domain.OrderSideBuy, balancedStats(0), 5)
	require.Len(t, schedule, 5)
	for i, slice := range schedule {
		assert.InDelta(t, 10.0, slice, 1e-9, "slice %d", i)
	}
}

func TestOptimalScheduleDegenerateInputs(t *testing.T) {
	m := NewImpact(DefaultImpactParams())

	t.Run("zero size", func(t *testing.T) {
		schedule := m.OptimalSchedule(0, domain.OrderSideBuy, balancedStats(0.2), 5)
		require.Len(t, schedule, 5)
		for _, slice := range schedule {
			assert.Zero(t, slice)
		}
	})

	t.Run("negative size", func(t *testing.T) {
		schedule := m.OptimalSchedule(-10, domain.OrderSideBuy, balancedStats(0.2), 5)
		for _, slice := range schedule {
			assert.Zero(t, slice)
		}
	})

	t.Run("one-sided book", func(t *testing.T) {
		st := balancedStats(0.2)
		st.TotalAskSize = 0
		schedule := m.OptimalSchedule(10, domain.OrderSideBuy, st, 5)
		for _, slice := range schedule {
			assert.Zero(t, slice)
		}
	})

	t.Run("steps clamped to one", func(t *testing.T) {
		for _, steps := range []int{0, -3} {
			schedule := m.OptimalSchedule(10, domain.OrderSideBuy, balancedStats(0.2), steps)
			require.Len(t, schedule, 1)
			assert.Equal(t, 10.0, schedule[0])
		}
	})

	t.Run("single step takes everything", func(t *testing.T) {
		schedule := m.OptimalSchedule(42.0, domain.OrderSideSell, balancedStats(0.2), 1)
		require.Len(t, schedule, 1)
		assert.Equal(t, 42.0, schedule[0])
	})
}

func TestImpactParamsSwapMidStream(t *testing.T) {
	m := NewImpact(DefaultImpactParams())

	p := m.Params()
	p.Volatility = 0.42
	p.RiskAversion = 2.0
	m.SetParams(p)

	got := m.Params()
	assert.Equal(t, 0.42, got.Volatility)
	assert.Equal(t, 2.0, got.RiskAversion)
	assert.Equal(t, 0.1, got.PermanentFactor)
}

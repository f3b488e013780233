package model

import (
	"math"
	"sync"

	"github.com/Eternal-Darkness-07/GoQuant/internal/domain"
)

// DefaultScheduleSteps is the number of slices an execution schedule is
// split into when the caller does not specify one.
const DefaultScheduleSteps = 10

// ImpactParams configure the Almgren-Chriss impact model. Volatility is the
// assumed parameter used for schedule shaping; the impact estimates
// themselves use the live measured volatility carried in the statistics.
type ImpactParams struct {
	PermanentFactor float64 `json:"permanent_factor"`
	TemporaryFactor float64 `json:"temporary_factor"`
	Volatility      float64 `json:"volatility"`
	TimeHorizon     float64 `json:"time_horizon"` // execution horizon in seconds
	RiskAversion    float64 `json:"risk_aversion"`
}

// DefaultImpactParams returns the stock Almgren-Chriss parameter set.
func DefaultImpactParams() ImpactParams {
	return ImpactParams{
		PermanentFactor: 0.1,
		TemporaryFactor: 0.1,
		Volatility:      0.0,
		TimeHorizon:     1.0,
		RiskAversion:    1.0,
	}
}

// Impact implements the Almgren-Chriss decomposition of market impact into a
// permanent component, which persists in the price, and a temporary one,
// which decays after execution. Parameters may be swapped at runtime while
// estimates are being computed on the feed goroutine.
type Impact struct {
	mu     sync.RWMutex
	params ImpactParams
}

// NewImpact creates an impact model with the given parameters.
func NewImpact(params ImpactParams) *Impact {
	return &Impact{params: params}
}

// SetParams replaces the model parameters.
func (m *Impact) SetParams(params ImpactParams) {
	m.mu.Lock()
	m.params = params
	m.mu.Unlock()
}

// Params returns a copy of the current model parameters.
func (m *Impact) Params() ImpactParams {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.params
}

// MarketImpact estimates the total expected impact of executing size base
// units against the given market state: permanent plus temporary component,
// signed positive for buys and negative for sells.
func (m *Impact) MarketImpact(size float64, side domain.OrderSide, stats domain.OrderbookStats) float64 {
	m.mu.RLock()
	p := m.params
	m.mu.RUnlock()

	sign := 1.0
	if side == domain.OrderSideSell {
		sign = -1.0
	}
	return (permanentImpact(p, size, stats) + temporaryImpact(p, size, stats)) * sign
}

// OptimalSchedule splits size into steps slices with front-loaded weights
// exp(-kappa*t), kappa = riskAversion * volatility^2 * timeHorizon /
// (steps-1), normalized over the discrete time grid. Any floating-point
// residual is folded into the last slice so the slices sum exactly to size.
// A non-positive size or a book with an empty side yields an all-zero
// schedule; a step count below 1 is clamped to 1. The schedule itself is
// direction-independent; side is part of the signature for parity with
// MarketImpact.
func (m *Impact) OptimalSchedule(size float64, side domain.OrderSide, stats domain.OrderbookStats, steps int) []float64 {
	if steps < 1 {
		steps = 1
	}
	schedule := make([]float64, steps)
	if size <= 0 || stats.TotalAskSize <= 0 || stats.TotalBidSize <= 0 {
		return schedule
	}
	if steps == 1 {
		schedule[0] = size
		return schedule
	}

	m.mu.RLock()
	p := m.params
	m.mu.RUnlock()

	kappa := p.RiskAversion * p.Volatility * p.Volatility * p.TimeHorizon / float64(steps-1)

	weights := make([]float64, steps)
	var totalWeight float64
	for i := range weights {
		t := float64(i) / float64(steps-1)
		weights[i] = math.Exp(-kappa * t)
		totalWeight += weights[i]
	}

	remaining := size
	for i := range schedule {
		slice := weights[i] / totalWeight * size
		if slice > remaining {
			slice = remaining
		}
		remaining -= slice
		schedule[i] = slice
	}
	if remaining > 0 {
		schedule[steps-1] += remaining
	}
	return schedule
}

// permanentImpact scales the base coefficient by how much of the visible
// depth the order consumes, then multiplies by size and live volatility.
func permanentImpact(p ImpactParams, size float64, stats domain.OrderbookStats) float64 {
	factor := p.PermanentFactor
	if depth := stats.TotalAskSize + stats.TotalBidSize; depth > 0 {
		factor *= 1 + math.Min(1, size/depth)
	}
	return factor * size * stats.Volatility
}

// temporaryImpact follows a square-root law in size, widened by the relative
// spread and by the magnitude of the order-flow imbalance.
func temporaryImpact(p ImpactParams, size float64, stats domain.OrderbookStats) float64 {
	liquidityFactor := 1.0
	if stats.MidPrice > 0 && stats.Spread > 0 {
		liquidityFactor = 1 + stats.Spread/stats.MidPrice
	}

	imbalanceFactor := 1.0
	if stats.TotalAskSize > 0 && stats.TotalBidSize > 0 {
		imbalanceFactor = math.Max(1, math.Abs(math.Log(stats.Imbalance)))
	}

	return p.TemporaryFactor * stats.Volatility * math.Sqrt(size) * liquidityFactor * imbalanceFactor
}

package model

import (
	"math"
	"sync"

	"github.com/Eternal-Darkness-07/GoQuant/internal/domain"
)

// Coefficients are the linear regression weights behind the slippage
// estimate. They can be replaced at runtime when the regression is re-fit.
type Coefficients struct {
	Intercept        float64
	VolumeFactor     float64
	VolatilityFactor float64
	ImbalanceFactor  float64
}

// DefaultCoefficients returns the stock regression fit.
func DefaultCoefficients() Coefficients {
	return Coefficients{
		Intercept:        0.0,
		VolumeFactor:     0.1,
		VolatilityFactor: 0.2,
		ImbalanceFactor:  -0.05,
	}
}

// Cost estimates the execution cost of a market order by combining the
// slippage regression, the impact model, and the tiered fee schedule. The
// fee tier and regression coefficients may be swapped at runtime while
// estimates are computed on the feed goroutine.
type Cost struct {
	impact *Impact

	mu   sync.RWMutex
	fees FeeSchedule
	coef Coefficients
}

// NewCost creates a cost model over the given impact model, starting at the
// base fee tier and the stock regression fit.
func NewCost(impact *Impact) *Cost {
	return &Cost{
		impact: impact,
		fees:   FeeScheduleForTier(0),
		coef:   DefaultCoefficients(),
	}
}

// SetFeeTier activates the rate schedule for the given tier.
func (c *Cost) SetFeeTier(tier int) {
	c.mu.Lock()
	c.fees = FeeScheduleForTier(tier)
	c.mu.Unlock()
}

// FeeSchedule returns the active fee schedule.
func (c *Cost) FeeSchedule() FeeSchedule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fees
}

// SetCoefficients installs a new slippage regression fit.
func (c *Cost) SetCoefficients(coef Coefficients) {
	c.mu.Lock()
	c.coef = coef
	c.mu.Unlock()
}

// Coefficients returns the active regression weights.
func (c *Cost) Coefficients() Coefficients {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.coef
}

// Slippage estimates execution slippage in price units: a linear model over
// relative order size, volatility, and imbalance, scaled by the mid-price
// and floored at half the spread. An order can never be estimated to cost
// less than crossing half the quoted spread.
func (c *Cost) Slippage(size float64, side domain.OrderSide, stats domain.OrderbookStats) float64 {
	relSize := relativeSize(size, side, stats)

	c.mu.RLock()
	coef := c.coef
	c.mu.RUnlock()

	estimate := coef.Intercept +
		coef.VolumeFactor*relSize +
		coef.VolatilityFactor*stats.Volatility +
		coef.ImbalanceFactor*(stats.Imbalance-1)

	priceSlippage := estimate * stats.MidPrice
	return math.Max(priceSlippage, stats.Spread/2)
}

// MakerProportion predicts the fraction of a market order expected to fill
// as maker flow: exponential decay in relative order size combined with
// exponential decay in volatility, clamped to [0, 0.1] since market orders
// rarely rest.
func (c *Cost) MakerProportion(size float64, side domain.OrderSide, stats domain.OrderbookStats) float64 {
	relSize := relativeSize(size, side, stats)
	p := math.Exp(-5*relSize) * math.Exp(-2*stats.Volatility)
	return clamp(p, 0, 0.1)
}

// Fees computes the expected fees on a notional of size*price, split between
// the maker and taker rates by makerProportion (clamped to [0,1]).
func (c *Cost) Fees(size, price, makerProportion float64) float64 {
	makerProportion = clamp(makerProportion, 0, 1)

	c.mu.RLock()
	fees := c.fees
	c.mu.RUnlock()

	notional := size * price
	return notional*makerProportion*fees.Maker + notional*(1-makerProportion)*fees.Taker
}

// TotalCost computes slippage, market impact, and fees for one order as a
// single consistent breakdown. Fees are charged on the mid-price notional
// with the predicted maker proportion.
func (c *Cost) TotalCost(size float64, side domain.OrderSide, stats domain.OrderbookStats) domain.CostBreakdown {
	slippage := c.Slippage(size, side, stats)
	impact := c.impact.MarketImpact(size, side, stats)
	maker := c.MakerProportion(size, side, stats)
	fees := c.Fees(size, stats.MidPrice, maker)

	return domain.CostBreakdown{
		Slippage: slippage,
		Impact:   impact,
		Fees:     fees,
		Total:    slippage + impact + fees,
	}
}

// relativeSize is order size over same-side visible depth (asks for a buy,
// bids for a sell), or 0 when that depth is 0.
func relativeSize(size float64, side domain.OrderSide, stats domain.OrderbookStats) float64 {
	if side == domain.OrderSideSell {
		if stats.TotalBidSize > 0 {
			return size / stats.TotalBidSize
		}
		return 0
	}
	if stats.TotalAskSize > 0 {
		return size / stats.TotalAskSize
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

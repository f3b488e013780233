package domain

import (
	"fmt"
	"time"
)

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderTypeMarket is the only order type the simulator prices.
const OrderTypeMarket = "market"

// SimulationParams are the consumer-controlled inputs to the cost simulation.
type SimulationParams struct {
	Exchange    string  `json:"exchange"`
	Symbol      string  `json:"symbol"`
	OrderType   string  `json:"order_type"`
	QuantityUSD float64 `json:"quantity_usd"`
	Volatility  float64 `json:"volatility"` // assumed annualized volatility, 0..1
	FeeTier     int     `json:"fee_tier"`
}

// DefaultSimulationParams returns the stock parameter set: a $100 market buy
// of BTC-USDT on OKX at the base fee tier.
func DefaultSimulationParams() SimulationParams {
	return SimulationParams{
		Exchange:    "OKX",
		Symbol:      "BTC-USDT",
		OrderType:   OrderTypeMarket,
		QuantityUSD: 100,
		Volatility:  0.1,
		FeeTier:     0,
	}
}

// Validate checks the structural constraints on the parameter set. The
// recommended quantity range (1-10,000 USD) is advisory and not enforced here.
func (p SimulationParams) Validate() error {
	if p.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidParams)
	}
	if p.OrderType != OrderTypeMarket {
		return fmt.Errorf("%w: order type %q not supported", ErrInvalidParams, p.OrderType)
	}
	if p.QuantityUSD <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %v", ErrInvalidParams, p.QuantityUSD)
	}
	if p.Volatility < 0 || p.Volatility > 1 {
		return fmt.Errorf("%w: volatility must be in [0,1], got %v", ErrInvalidParams, p.Volatility)
	}
	if p.FeeTier < 0 {
		return fmt.Errorf("%w: fee tier must be non-negative, got %d", ErrInvalidParams, p.FeeTier)
	}
	return nil
}

// CostBreakdown decomposes the estimated execution cost of one simulated
// order into its components. All values are quote-currency amounts.
type CostBreakdown struct {
	Slippage float64 `json:"slippage"`
	Impact   float64 `json:"impact"`
	Fees     float64 `json:"fees"`
	Total    float64 `json:"total"`
}

// SimulationResult is the full output of one cost simulation tick.
type SimulationResult struct {
	Slippage        float64   `json:"slippage"`
	Fees            float64   `json:"fees"`
	Impact          float64   `json:"impact"`
	NetCost         float64   `json:"net_cost"`
	MakerProportion float64   `json:"maker_proportion"`
	LatencyMicros   int64     `json:"latency_us"` // full pipeline time for this tick
	MidPrice        float64   `json:"mid_price"`
	Spread          float64   `json:"spread"`
	Volatility      float64   `json:"volatility"`
	ComputedAt      time.Time `json:"computed_at"`
}

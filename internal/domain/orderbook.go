package domain

import "time"

// PriceLevel is a single price+size entry in an orderbook.
type PriceLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OrderbookSnapshot is a full L2 snapshot of one instrument's book.
// Asks are sorted ascending by price and bids descending, so index 0 is
// the best level on each side. Either side may be empty on a thin market.
type OrderbookSnapshot struct {
	Exchange   string       `json:"exchange"`
	Symbol     string       `json:"symbol"`
	Timestamp  string       `json:"timestamp"` // venue timestamp, kept as received
	Asks       []PriceLevel `json:"asks"`
	Bids       []PriceLevel `json:"bids"`
	ReceivedAt time.Time    `json:"received_at"`
}

// BestBid returns the highest bid price, or 0 when the bid side is empty.
func (s OrderbookSnapshot) BestBid() float64 {
	if len(s.Bids) == 0 {
		return 0
	}
	return s.Bids[0].Price
}

// BestAsk returns the lowest ask price, or 0 when the ask side is empty.
func (s OrderbookSnapshot) BestAsk() float64 {
	if len(s.Asks) == 0 {
		return 0
	}
	return s.Asks[0].Price
}

// MidPrice returns the midpoint of the best bid and ask, or 0 unless both
// sides are populated.
func (s OrderbookSnapshot) MidPrice() float64 {
	if len(s.Bids) == 0 || len(s.Asks) == 0 {
		return 0
	}
	return (s.Bids[0].Price + s.Asks[0].Price) / 2
}

// Spread returns bestAsk-bestBid, or 0 unless both sides are populated.
func (s OrderbookSnapshot) Spread() float64 {
	if len(s.Bids) == 0 || len(s.Asks) == 0 {
		return 0
	}
	return s.Asks[0].Price - s.Bids[0].Price
}

// TotalBidSize sums the size across every bid level.
func (s OrderbookSnapshot) TotalBidSize() float64 {
	var total float64
	for _, lvl := range s.Bids {
		total += lvl.Size
	}
	return total
}

// TotalAskSize sums the size across every ask level.
func (s OrderbookSnapshot) TotalAskSize() float64 {
	var total float64
	for _, lvl := range s.Asks {
		total += lvl.Size
	}
	return total
}

// Imbalance returns total bid size over total ask size, or 0 when the ask
// side carries no size.
func (s OrderbookSnapshot) Imbalance() float64 {
	askSize := s.TotalAskSize()
	if askSize == 0 {
		return 0
	}
	return s.TotalBidSize() / askSize
}

// TwoSided reports whether both sides of the book are populated.
func (s OrderbookSnapshot) TwoSided() bool {
	return len(s.Bids) > 0 && len(s.Asks) > 0
}

// OrderbookStats are the derived per-update statistics over the latest
// snapshot and the rolling history window. Degenerate inputs (empty or
// one-sided books, zero depth) yield zero values, never NaN or Inf.
type OrderbookStats struct {
	BestBid       float64 `json:"best_bid"`
	BestAsk       float64 `json:"best_ask"`
	MidPrice      float64 `json:"mid_price"`
	Spread        float64 `json:"spread"`
	BidVWAP       float64 `json:"bid_vwap"`
	AskVWAP       float64 `json:"ask_vwap"`
	TotalBidSize  float64 `json:"total_bid_size"`
	TotalAskSize  float64 `json:"total_ask_size"`
	Imbalance     float64 `json:"imbalance"`
	Volatility    float64 `json:"volatility"`
	LatencyMicros int64   `json:"latency_us"` // wall-clock cost of computing this update
}

package handler

import (
	"log/slog"
	"net/http"

	"github.com/Eternal-Darkness-07/GoQuant/internal/domain"
)

// MarketService defines the methods the market handler requires from the
// simulator. It is declared locally so the handler package does not depend on
// the concrete implementation.
type MarketService interface {
	Stats() (domain.OrderbookStats, bool)
	Orderbook() (domain.OrderbookSnapshot, bool)
	History() []domain.OrderbookSnapshot
}

// MarketHandler serves orderbook and statistics endpoints.
type MarketHandler struct {
	market MarketService
	logger *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given service and logger.
func NewMarketHandler(market MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		market: market,
		logger: logHandler(logger, "market"),
	}
}

// GetStats returns the derived statistics for the latest orderbook update.
// GET /api/stats
func (h *MarketHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, ok := h.market.Stats()
	if !ok {
		writeError(w, http.StatusNotFound, "no market data yet")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetOrderbook returns the latest raw snapshot, optionally truncated to the
// top ?depth levels per side.
// GET /api/orderbook?depth=10
func (h *MarketHandler) GetOrderbook(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.market.Orderbook()
	if !ok {
		writeError(w, http.StatusNotFound, "no market data yet")
		return
	}

	if depth := queryInt(r, "depth", 0, 0); depth > 0 {
		if len(snap.Asks) > depth {
			snap.Asks = snap.Asks[:depth]
		}
		if len(snap.Bids) > depth {
			snap.Bids = snap.Bids[:depth]
		}
	}

	writeJSON(w, http.StatusOK, snap)
}

// historyResponse wraps the snapshot history with metadata.
type historyResponse struct {
	Snapshots []domain.OrderbookSnapshot `json:"snapshots"`
	Count     int                        `json:"count"`
}

// GetHistory returns the most recent snapshots from the rolling window,
// oldest first.
// GET /api/history?limit=50
func (h *MarketHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50, 500)
	if limit < 1 {
		writeError(w, http.StatusBadRequest, "limit must be positive")
		return
	}

	history := h.market.History()
	if len(history) > limit {
		history = history[len(history)-limit:]
	}

	writeJSON(w, http.StatusOK, historyResponse{
		Snapshots: history,
		Count:     len(history),
	})
}

package handler

import (
	"net/http"
	"time"

	"github.com/Eternal-Darkness-07/GoQuant/internal/domain"
)

// StatusSource exposes the pipeline counters behind the status endpoint.
type StatusSource interface {
	Running() bool
	FeedStatus() domain.FeedStatus
	Updates() uint64
	AverageLatency() time.Duration
	HistoryLen() int
	WindowSize() int
}

// SessionInfo identifies the running process for the dashboard.
type SessionInfo struct {
	SessionID string
	Exchange  string
	Symbol    string
	StartedAt time.Time
}

// StatusHandler serves the session status for the dashboard.
type StatusHandler struct {
	source  StatusSource
	session SessionInfo
}

// NewStatusHandler creates a StatusHandler for the given session.
func NewStatusHandler(source StatusSource, session SessionInfo) *StatusHandler {
	return &StatusHandler{source: source, session: session}
}

// GetStatus responds with session identity, feed state, and pipeline counters.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":     h.session.SessionID,
		"exchange":       h.session.Exchange,
		"symbol":         h.session.Symbol,
		"started_at":     h.session.StartedAt.UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.session.StartedAt).Seconds()),
		"running":        h.source.Running(),
		"feed":           h.source.FeedStatus(),
		"updates":        h.source.Updates(),
		"avg_latency_us": h.source.AverageLatency().Microseconds(),
		"window_fill":    h.source.HistoryLen(),
		"window_size":    h.source.WindowSize(),
	})
}

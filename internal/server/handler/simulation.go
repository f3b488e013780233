package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Eternal-Darkness-07/GoQuant/internal/domain"
)

// SimulationService defines the methods the simulation handler requires from
// the simulator. It is declared locally so the handler package does not
// depend on the concrete implementation.
type SimulationService interface {
	Params() domain.SimulationParams
	UpdateParams(p domain.SimulationParams) error
	Latest() (domain.SimulationResult, bool)
	Results(limit int) []domain.SimulationResult
	Simulate(p domain.SimulationParams) (domain.SimulationResult, error)
	Schedule(size float64, steps int) ([]float64, error)
}

// SimulationHandler serves the cost-simulation HTTP endpoints.
type SimulationHandler struct {
	sim    SimulationService
	logger *slog.Logger
}

// NewSimulationHandler creates a SimulationHandler with the given service.
func NewSimulationHandler(sim SimulationService, logger *slog.Logger) *SimulationHandler {
	return &SimulationHandler{
		sim:    sim,
		logger: logHandler(logger, "simulation"),
	}
}

// GetResult returns the most recent live simulation result.
// GET /api/result
func (h *SimulationHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	res, ok := h.sim.Latest()
	if !ok {
		writeError(w, http.StatusNotFound, "no result yet")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// listResultsResponse wraps the results list with metadata.
type listResultsResponse struct {
	Results []domain.SimulationResult `json:"results"`
	Count   int                       `json:"count"`
	Limit   int                       `json:"limit"`
}

// ListResults returns the most recent simulation results, oldest first.
// GET /api/results?limit=50
func (h *SimulationHandler) ListResults(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50, 500)
	if limit < 1 {
		writeError(w, http.StatusBadRequest, "limit must be positive")
		return
	}

	results := h.sim.Results(limit)
	writeJSON(w, http.StatusOK, listResultsResponse{
		Results: results,
		Count:   len(results),
		Limit:   limit,
	})
}

// GetParams returns the active simulation parameters.
// GET /api/params
func (h *SimulationHandler) GetParams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sim.Params())
}

// UpdateParams replaces the active simulation parameters. The new set applies
// from the next orderbook update onward.
// PUT /api/params
func (h *SimulationHandler) UpdateParams(w http.ResponseWriter, r *http.Request) {
	// Start from the active set so a partial body only changes the fields it
	// names.
	params := h.sim.Params()
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if err := h.sim.UpdateParams(params); err != nil {
		if errors.Is(err, domain.ErrInvalidParams) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: update params failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to update params")
		return
	}

	writeJSON(w, http.StatusOK, h.sim.Params())
}

// Simulate runs a one-off what-if estimate against the latest market state
// without touching the live parameter set or the result history.
// POST /api/simulate
func (h *SimulationHandler) Simulate(w http.ResponseWriter, r *http.Request) {
	params := h.sim.Params()
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	res, err := h.sim.Simulate(params)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidParams):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrNoSnapshot):
			writeError(w, http.StatusServiceUnavailable, "no market data yet")
		default:
			h.logger.ErrorContext(r.Context(), "handler: simulate failed",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "simulation failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// scheduleResponse carries an optimal execution schedule.
type scheduleResponse struct {
	Size     float64   `json:"size"`
	Steps    int       `json:"steps"`
	Schedule []float64 `json:"schedule"`
}

// GetSchedule returns the optimal execution schedule for a buy of ?size base
// units, split into ?steps tranches (default from configuration).
// GET /api/impact/schedule?size=10&steps=10
func (h *SimulationHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	size, ok := queryFloat(r, "size")
	if !ok || size <= 0 {
		writeError(w, http.StatusBadRequest, "size must be a positive number")
		return
	}
	steps := queryInt(r, "steps", 0, 1000)
	if steps < 0 {
		writeError(w, http.StatusBadRequest, "steps must be positive")
		return
	}

	schedule, err := h.sim.Schedule(size, steps)
	if err != nil {
		if errors.Is(err, domain.ErrNoSnapshot) {
			writeError(w, http.StatusServiceUnavailable, "no market data yet")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: schedule failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "schedule failed")
		return
	}

	writeJSON(w, http.StatusOK, scheduleResponse{
		Size:     size,
		Steps:    len(schedule),
		Schedule: schedule,
	})
}

// Package handlers provides HTTP handlers for running and browsing backtests.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/papertrader/internal/modules/backtest"
	"github.com/aristath/papertrader/internal/modules/signals"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// BacktestHandlers contains HTTP handlers for the backtest API
type BacktestHandlers struct {
	log      zerolog.Logger
	repo     *backtest.ResultRepository
	defaults backtest.Config
}

// NewBacktestHandlers creates backtest handlers. defaults supplies capital,
// commission and slippage when a request omits them. repo may be nil, in
// which case runs are returned but not archived.
func NewBacktestHandlers(repo *backtest.ResultRepository, defaults backtest.Config, log zerolog.Logger) *BacktestHandlers {
	return &BacktestHandlers{
		repo:     repo,
		defaults: defaults,
		log:      log.With().Str("handler", "backtest").Logger(),
	}
}

// RegisterRoutes registers all backtest routes
func (h *BacktestHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/backtests", func(r chi.Router) {
		r.Post("/", h.HandleRunBacktest)
		r.Get("/", h.HandleListRuns)
		r.Get("/{id}", h.HandleGetRun)
		r.Get("/{id}/trades", h.HandleGetTrades)
		r.Get("/{id}/values", h.HandleGetValues)
	})
}

// runRequest is the POST /api/backtests body. Signals, when omitted, are
// generated with an SMA crossover of Fast/Slow.
type runRequest struct {
	Symbol         string      `json:"symbol"`
	Dates          []time.Time `json:"dates,omitempty"`
	Prices         []float64   `json:"prices"`
	Signals        []int       `json:"signals,omitempty"`
	Fast           int         `json:"fast,omitempty"`
	Slow           int         `json:"slow,omitempty"`
	InitialCapital *float64    `json:"initial_capital,omitempty"`
	CommissionRate *float64    `json:"commission_rate,omitempty"`
	Slippage       *float64    `json:"slippage,omitempty"`
}

// HandleRunBacktest runs a backtest and archives it
// POST /api/backtests
func (h *BacktestHandlers) HandleRunBacktest(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Symbol) == "" {
		h.writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	cfg := h.defaults
	if req.InitialCapital != nil {
		cfg.InitialCapital = *req.InitialCapital
	}
	if req.CommissionRate != nil {
		cfg.CommissionRate = *req.CommissionRate
	}
	if req.Slippage != nil {
		cfg.Slippage = *req.Slippage
	}

	strategy := "manual"
	intents := req.Signals
	if intents == nil {
		fast, slow := req.Fast, req.Slow
		if fast == 0 && slow == 0 {
			fast, slow = 5, 20
		}
		source, err := signals.NewSMACross(fast, slow)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if intents, err = source.Generate(req.Prices); err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		strategy = source.Name()
	}

	prices := backtest.PriceSeries{Index: req.Dates, Values: req.Prices}
	sigs := backtest.SignalSeries{Index: req.Dates, Values: intents}

	result, err := backtest.NewEngine(cfg, h.log).Run(strings.ToUpper(req.Symbol), sigs, prices)
	if err != nil {
		if errors.Is(err, backtest.ErrShapeMismatch) || errors.Is(err, backtest.ErrInvalidPrice) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error().Err(err).Msg("Backtest failed")
		h.writeError(w, http.StatusInternalServerError, "Backtest failed")
		return
	}
	result.Strategy = strategy

	if h.repo != nil {
		if _, err := h.repo.Save(result); err != nil {
			h.log.Error().Err(err).Msg("Failed to archive backtest")
			h.writeError(w, http.StatusInternalServerError, "Failed to archive backtest")
			return
		}
	}

	h.writeJSON(w, http.StatusCreated, result)
}

// HandleListRuns lists archived runs, newest first
// GET /api/backtests?limit=
func (h *BacktestHandlers) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	if !h.requireRepo(w) {
		return
	}
	limit := 20
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		if parsed, err := strconv.Atoi(limitParam); err == nil {
			limit = parsed
		}
	}

	runs, err := h.repo.ListRuns(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list backtests")
		h.writeError(w, http.StatusInternalServerError, "Failed to list backtests")
		return
	}
	if runs == nil {
		runs = []backtest.RunSummary{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs, "count": len(runs)})
}

// HandleGetRun returns one run summary
// GET /api/backtests/{id}
func (h *BacktestHandlers) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	if !h.requireRepo(w) {
		return
	}
	run, err := h.repo.GetRun(chi.URLParam(r, "id"))
	if h.handleLookupError(w, err) {
		return
	}
	h.writeJSON(w, http.StatusOK, run)
}

// HandleGetTrades returns the trades of a run
// GET /api/backtests/{id}/trades
func (h *BacktestHandlers) HandleGetTrades(w http.ResponseWriter, r *http.Request) {
	if !h.requireRepo(w) {
		return
	}
	trades, err := h.repo.GetTrades(chi.URLParam(r, "id"))
	if h.handleLookupError(w, err) {
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"trades": trades, "count": len(trades)})
}

// HandleGetValues returns the per-row portfolio values of a run
// GET /api/backtests/{id}/values
func (h *BacktestHandlers) HandleGetValues(w http.ResponseWriter, r *http.Request) {
	if !h.requireRepo(w) {
		return
	}
	values, err := h.repo.GetSnapshots(chi.URLParam(r, "id"))
	if h.handleLookupError(w, err) {
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"values": values, "count": len(values)})
}

func (h *BacktestHandlers) requireRepo(w http.ResponseWriter) bool {
	if h.repo == nil {
		h.writeError(w, http.StatusServiceUnavailable, "Backtest archive not configured")
		return false
	}
	return true
}

func (h *BacktestHandlers) handleLookupError(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, backtest.ErrRunNotFound):
		h.writeError(w, http.StatusNotFound, "Backtest not found")
	default:
		h.log.Error().Err(err).Msg("Failed to load backtest")
		h.writeError(w, http.StatusInternalServerError, "Failed to load backtest")
	}
	return true
}

// writeJSON writes a JSON response
func (h *BacktestHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (h *BacktestHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// Package handlers provides HTTP handlers for the paper trading account.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/aristath/papertrader/internal/domain"
	"github.com/aristath/papertrader/internal/modules/trading"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// TradingHandlers contains HTTP handlers for the trading API
type TradingHandlers struct {
	log     zerolog.Logger
	gateway domain.TradeGateway
	engine  *trading.Engine
	journal *trading.TradeJournal
}

// NewTradingHandlers creates trading handlers. Orders go through gateway;
// queries read engine. journal may be nil, in which case trade history is
// served from memory.
func NewTradingHandlers(
	gateway domain.TradeGateway,
	engine *trading.Engine,
	journal *trading.TradeJournal,
	log zerolog.Logger,
) *TradingHandlers {
	return &TradingHandlers{
		gateway: gateway,
		engine:  engine,
		journal: journal,
		log:     log.With().Str("handler", "trading").Logger(),
	}
}

// placeOrderRequest is the POST /api/orders body
type placeOrderRequest struct {
	Symbol   string  `json:"symbol"`
	Type     string  `json:"order_type"`
	Quantity int64   `json:"quantity"`
	Price    float64 `json:"price"`
}

// HandlePlaceOrder submits an order through the trade gateway
// POST /api/orders
func (h *TradingHandlers) HandlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	orderType := domain.OrderType(strings.ToLower(strings.TrimSpace(req.Type)))
	if orderType == "" {
		orderType = domain.OrderTypeLimit
		if req.Price == 0 {
			orderType = domain.OrderTypeMarket
		}
	}

	id, err := h.gateway.SendOrder(domain.OrderRequest{
		Symbol:   strings.ToUpper(strings.TrimSpace(req.Symbol)),
		Type:     orderType,
		Quantity: req.Quantity,
		Price:    req.Price,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidOrder) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error().Err(err).Msg("Failed to place order")
		h.writeError(w, http.StatusInternalServerError, "Failed to place order")
		return
	}

	order, _ := h.engine.Order(id)
	h.writeJSON(w, http.StatusCreated, order)
}

// HandleGetOrders lists orders, optionally filtered by ?status=
// GET /api/orders
func (h *TradingHandlers) HandleGetOrders(w http.ResponseWriter, r *http.Request) {
	status := strings.ToUpper(r.URL.Query().Get("status"))

	var orders []domain.Order
	if status == string(domain.OrderStatusPending) {
		orders = h.engine.PendingOrders()
	} else {
		for _, o := range h.engine.Orders() {
			if status == "" || string(o.Status) == status {
				orders = append(orders, o)
			}
		}
	}
	if orders == nil {
		orders = []domain.Order{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"orders": orders,
		"count":  len(orders),
	})
}

// HandleGetOrder returns one order
// GET /api/orders/{id}
func (h *TradingHandlers) HandleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, ok := h.engine.Order(chi.URLParam(r, "id"))
	if !ok {
		h.writeError(w, http.StatusNotFound, "Order not found")
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}

// HandleCancelOrder cancels a pending order
// DELETE /api/orders/{id}
func (h *TradingHandlers) HandleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	order, ok := h.engine.Order(id)
	if !ok {
		h.writeError(w, http.StatusNotFound, "Order not found")
		return
	}
	if !h.gateway.CancelOrder(id) {
		h.writeError(w, http.StatusConflict, "Order is already "+strings.ToLower(string(order.Status)))
		return
	}

	order, _ = h.engine.Order(id)
	h.writeJSON(w, http.StatusOK, order)
}

// HandleGetTrades returns trade history, most recent first
// GET /api/trades?symbol=&limit=
func (h *TradingHandlers) HandleGetTrades(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		if parsed, err := strconv.Atoi(limitParam); err == nil {
			limit = parsed
		}
	}
	symbol := strings.ToUpper(r.URL.Query().Get("symbol"))

	if h.journal != nil {
		entries, err := h.journal.History(symbol, limit)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to get trade history")
			h.writeError(w, http.StatusInternalServerError, "Failed to get trade history")
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]interface{}{"trades": entries, "count": len(entries)})
		return
	}

	all := h.engine.Trades()
	trades := []domain.Trade{}
	for i := len(all) - 1; i >= 0; i-- {
		if symbol != "" && all[i].Symbol != symbol {
			continue
		}
		trades = append(trades, all[i])
		if limit > 0 && len(trades) == limit {
			break
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"trades": trades, "count": len(trades)})
}

// HandleGetPortfolio returns the account summary marked at the last ticks
// GET /api/portfolio
func (h *TradingHandlers) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	summary := h.engine.Summary(nil)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"summary":         summary,
		"positions":       h.engine.Positions(),
		"initial_capital": h.engine.InitialCapital(),
	})
}

// writeJSON writes a JSON response
func (h *TradingHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (h *TradingHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

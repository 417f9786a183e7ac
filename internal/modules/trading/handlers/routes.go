package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all trading routes
func (h *TradingHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.HandlePlaceOrder)
		r.Get("/", h.HandleGetOrders)
		r.Get("/{id}", h.HandleGetOrder)
		r.Delete("/{id}", h.HandleCancelOrder)
	})

	r.Get("/trades", h.HandleGetTrades)
	r.Get("/portfolio", h.HandleGetPortfolio)
}

package trading

import (
	"github.com/aristath/papertrader/internal/domain"
	"github.com/rs/zerolog"
)

var _ domain.TradeGateway = (*PaperGateway)(nil)

// PaperGateway is the simulated trade venue backed by an Engine.
//
// Limit orders rest in the engine until a live tick crosses them. Market
// orders are executed on submission when a reference price is known (the
// request price, else the last live tick); otherwise, or when cash or
// position is short, they stay pending and fill on the next live tick.
type PaperGateway struct {
	engine *Engine
	log    zerolog.Logger
}

// NewPaperGateway wraps engine as a TradeGateway
func NewPaperGateway(engine *Engine, log zerolog.Logger) *PaperGateway {
	return &PaperGateway{
		engine: engine,
		log:    log.With().Str("component", "paper_gateway").Logger(),
	}
}

// Connect always succeeds for the simulated venue
func (g *PaperGateway) Connect() bool {
	g.log.Info().
		Float64("initial_capital", g.engine.cfg.InitialCapital).
		Float64("commission", g.engine.cfg.CommissionRate).
		Float64("slippage", g.engine.cfg.Slippage).
		Msg("Paper trading account ready")
	return true
}

// SendOrder registers req with the engine and returns the order id
func (g *PaperGateway) SendOrder(req domain.OrderRequest) (string, error) {
	id, err := g.engine.Place(req)
	if err != nil {
		return "", err
	}
	if req.Type != domain.OrderTypeMarket {
		return id, nil
	}

	ref := req.Price
	if ref <= 0 {
		ref, _ = g.engine.LastPrice(req.Symbol)
	}
	if ref <= 0 {
		g.log.Debug().Str("order_id", id).Str("symbol", req.Symbol).Msg("No reference price, market order waits for next tick")
		return id, nil
	}
	if !g.engine.Execute(id, ref, req.Timestamp) {
		g.log.Info().Str("order_id", id).Msg("Market order not filled on submission, left pending")
	}
	return id, nil
}

// CancelOrder cancels a pending order
func (g *PaperGateway) CancelOrder(orderID string) bool {
	return g.engine.Cancel(orderID)
}

// Engine exposes the backing engine for queries
func (g *PaperGateway) Engine() *Engine {
	return g.engine
}

package trading

import (
	"errors"
	"fmt"
	"time"

	"github.com/aristath/papertrader/internal/domain"
	"github.com/google/uuid"
)

var (
	// ErrOrderNotFound is returned for ids the registry never issued
	ErrOrderNotFound = errors.New("order not found")
	// ErrInvalidTransition is returned when a terminal order is asked to change status
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// OrderRegistry owns the orders of one engine and enforces their lifecycle:
// PENDING -> FILLED or PENDING -> CANCELLED, nothing else.
//
// The registry is not safe for concurrent use; the engine mutex guards it.
type OrderRegistry struct {
	orders   map[string]*domain.Order
	sequence []string            // every id in registration order
	pending  map[string][]string // symbol -> pending ids in registration order
	newID    func() string
}

// NewOrderRegistry creates an empty registry issuing uuid order ids
func NewOrderRegistry() *OrderRegistry {
	return &OrderRegistry{
		orders:  make(map[string]*domain.Order),
		pending: make(map[string][]string),
		newID:   uuid.NewString,
	}
}

// Register stores req as a new PENDING order and returns it
func (r *OrderRegistry) Register(req domain.OrderRequest, at time.Time) domain.Order {
	order := &domain.Order{
		ID:        r.newID(),
		Symbol:    req.Symbol,
		Quantity:  req.Quantity,
		Type:      req.Type,
		Price:     req.Price,
		Status:    domain.OrderStatusPending,
		CreatedAt: at,
		UpdatedAt: at,
	}
	r.orders[order.ID] = order
	r.sequence = append(r.sequence, order.ID)
	r.pending[order.Symbol] = append(r.pending[order.Symbol], order.ID)
	return *order
}

// Get returns a copy of the order
func (r *OrderRegistry) Get(id string) (domain.Order, bool) {
	order, ok := r.orders[id]
	if !ok {
		return domain.Order{}, false
	}
	return *order, true
}

// All returns every order in registration order
func (r *OrderRegistry) All() []domain.Order {
	out := make([]domain.Order, 0, len(r.sequence))
	for _, id := range r.sequence {
		out = append(out, *r.orders[id])
	}
	return out
}

// Pending returns the pending orders for symbol in registration order.
// An empty symbol returns pending orders for every symbol.
func (r *OrderRegistry) Pending(symbol string) []domain.Order {
	if symbol != "" {
		ids := r.pending[symbol]
		out := make([]domain.Order, 0, len(ids))
		for _, id := range ids {
			out = append(out, *r.orders[id])
		}
		return out
	}

	var out []domain.Order
	for _, id := range r.sequence {
		if o := r.orders[id]; o.Status == domain.OrderStatusPending {
			out = append(out, *o)
		}
	}
	return out
}

// PendingCount returns the number of orders awaiting a fill
func (r *OrderRegistry) PendingCount() int {
	n := 0
	for _, ids := range r.pending {
		n += len(ids)
	}
	return n
}

// MarkFilled moves a pending order to FILLED
func (r *OrderRegistry) MarkFilled(id string, at time.Time) error {
	return r.transition(id, domain.OrderStatusFilled, at)
}

// Cancel moves a pending order to CANCELLED
func (r *OrderRegistry) Cancel(id string, at time.Time) error {
	return r.transition(id, domain.OrderStatusCancelled, at)
}

func (r *OrderRegistry) transition(id string, to domain.OrderStatus, at time.Time) error {
	order, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	if order.Status != domain.OrderStatusPending {
		return fmt.Errorf("%w: %s is %s, cannot become %s", ErrInvalidTransition, id, order.Status, to)
	}

	order.Status = to
	order.UpdatedAt = at
	r.removePending(order.Symbol, id)
	return nil
}

func (r *OrderRegistry) removePending(symbol, id string) {
	ids := r.pending[symbol]
	for i, pid := range ids {
		if pid == id {
			ids = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(r.pending, symbol)
		return
	}
	r.pending[symbol] = ids
}

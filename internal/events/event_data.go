package events

import "time"

// EventData is the interface that typed event payloads implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// Order lifecycle actions reported in OrderEventData
const (
	OrderPlaced    = "placed"
	OrderFilled    = "filled"
	OrderCancelled = "cancelled"
)

// OrderEventData contains data for order events
type OrderEventData struct {
	Action    string    `json:"action"`
	OrderID   string    `json:"order_id"`
	Symbol    string    `json:"symbol"`
	Quantity  int64     `json:"quantity"`
	Price     float64   `json:"price"`
	OrderType string    `json:"order_type"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// EventType returns the event type for OrderEventData
func (d *OrderEventData) EventType() EventType {
	return EventOrder
}

// TradeEventData contains data for trade events
type TradeEventData struct {
	OrderID    string    `json:"order_id"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Quantity   int64     `json:"quantity"`
	Price      float64   `json:"price"`
	Commission float64   `json:"commission"`
	ProfitLoss float64   `json:"profit_loss,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// EventType returns the event type for TradeEventData
func (d *TradeEventData) EventType() EventType {
	return EventTrade
}

// AccountEventData contains the cash balance after a fill
type AccountEventData struct {
	Cash      float64   `json:"cash"`
	Timestamp time.Time `json:"timestamp"`
}

// EventType returns the event type for AccountEventData
func (d *AccountEventData) EventType() EventType {
	return EventAccount
}

// PositionEventData contains a position after a fill
type PositionEventData struct {
	Symbol   string  `json:"symbol"`
	Quantity int64   `json:"quantity"`
	AvgPrice float64 `json:"avg_price"`
}

// EventType returns the event type for PositionEventData
func (d *PositionEventData) EventType() EventType {
	return EventPosition
}

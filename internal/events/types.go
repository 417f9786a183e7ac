package events

// EventType identifies a stream of events on the bus
type EventType string

const (
	// EventTick carries a domain.Tick by value
	EventTick EventType = "tick"
	// EventOrder carries *OrderEventData
	EventOrder EventType = "order"
	// EventTrade carries *TradeEventData
	EventTrade EventType = "trade"
	// EventAccount carries *AccountEventData
	EventAccount EventType = "account"
	// EventPosition carries *PositionEventData
	EventPosition EventType = "position"
)

// String implements fmt.Stringer
func (t EventType) String() string {
	return string(t)
}

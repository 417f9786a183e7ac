package domain

import "context"

// TickHandler receives ticks pushed by a DataGateway
type TickHandler func(Tick)

// DataGateway pulls quotes from a source and pushes them as ticks
type DataGateway interface {
	// Connect verifies the source is reachable. It never returns an error;
	// failures are logged and reported as false.
	Connect(ctx context.Context) bool

	// Subscribe adds symbols to the polling set. New symbols are backfilled
	// synchronously with warm-up ticks before Subscribe returns.
	Subscribe(symbols []string) bool

	// Start launches the polling loop. Idempotent.
	Start()

	// Stop ends the polling loop and waits for it with a bounded timeout. Idempotent.
	Stop()

	// SetTickHandler installs the callback invoked for every pushed tick
	SetTickHandler(handler TickHandler)
}

// TradeGateway submits orders to an execution venue
type TradeGateway interface {
	Connect() bool
	SendOrder(req OrderRequest) (string, error)
	CancelOrder(orderID string) bool
}

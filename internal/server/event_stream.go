package server

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aristath/papertrader/internal/events"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	streamBuffer    = 256
	streamHeartbeat = 30 * time.Second
	streamWriteWait = 5 * time.Second
)

// StreamMessage is one frame sent to websocket clients
type StreamMessage struct {
	Type      events.EventType `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Data      any              `json:"data,omitempty"`
}

type streamClient struct {
	send  chan StreamMessage
	types map[events.EventType]bool // nil means every type
}

// EventStream fans bus events out to websocket clients.
//
// It subscribes to the bus once; clients come and go without touching the
// bus. A slow client drops frames rather than blocking the publisher.
type EventStream struct {
	mu      sync.Mutex
	clients map[*streamClient]struct{}
	log     zerolog.Logger
}

// NewEventStream creates an empty stream hub
func NewEventStream(log zerolog.Logger) *EventStream {
	return &EventStream{
		clients: make(map[*streamClient]struct{}),
		log:     log.With().Str("component", "event_stream").Logger(),
	}
}

// Attach subscribes the stream to the given event types on bus
func (s *EventStream) Attach(bus *events.Bus, types ...events.EventType) {
	for _, t := range types {
		eventType := t
		bus.On(eventType, func(data any) {
			s.Publish(eventType, data)
		})
	}
}

// Publish queues an event for every interested client
func (s *EventStream) Publish(eventType events.EventType, data any) {
	msg := StreamMessage{Type: eventType, Timestamp: time.Now(), Data: data}

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		if c.types != nil && !c.types[eventType] {
			continue
		}
		select {
		case c.send <- msg:
		default:
			s.log.Warn().Str("event_type", string(eventType)).Msg("Client buffer full, dropping event")
		}
	}
}

// ClientCount returns the number of connected clients
func (s *EventStream) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *EventStream) register(types map[events.EventType]bool) *streamClient {
	c := &streamClient{send: make(chan StreamMessage, streamBuffer), types: types}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	return c
}

func (s *EventStream) unregister(c *streamClient) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}

// ServeHTTP upgrades GET /api/events/ws to a websocket. ?types=tick,trade
// restricts the stream to those event types.
func (s *EventStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var types map[events.EventType]bool
	if filter := r.URL.Query().Get("types"); filter != "" {
		types = make(map[events.EventType]bool)
		for _, t := range strings.Split(filter, ",") {
			types[events.EventType(strings.TrimSpace(t))] = true
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		s.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	client := s.register(types)
	defer s.unregister(client)

	s.log.Info().Str("remote", r.RemoteAddr).Int("clients", s.ClientCount()).Msg("Client connected to event stream")

	// Client frames are ignored; CloseRead cancels ctx when the peer goes away
	ctx := conn.CloseRead(r.Context())
	if err := s.write(ctx, conn, StreamMessage{Type: "connected", Timestamp: time.Now()}); err != nil {
		return
	}

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Client disconnected from event stream")
			return
		case msg := <-client.send:
			if err := s.write(ctx, conn, msg); err != nil {
				s.log.Debug().Err(err).Msg("Event stream write failed")
				return
			}
		case <-heartbeat.C:
			pingCtx, cancel := context.WithTimeout(ctx, streamWriteWait)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (s *EventStream) write(ctx context.Context, conn *websocket.Conn, msg StreamMessage) error {
	writeCtx, cancel := context.WithTimeout(ctx, streamWriteWait)
	defer cancel()
	return wsjson.Write(writeCtx, conn, msg)
}

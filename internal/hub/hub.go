package hub

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"
	"github.com/rs/zerolog"
)

// Hub maintains the live-feed clients and broadcasts edges and
// recommendations to them. It implements contracts.Publisher.
type Hub struct {
	clients   map[*Client]bool
	clientsMu sync.RWMutex

	broadcast  chan update
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	totalConnections atomic.Int64
	totalMessages    atomic.Int64
	dropped          atomic.Int64

	log zerolog.Logger
}

// New creates a hub; call Run to start it
func New(log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan update, 1000),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log.With().Str("component", "hub").Logger(),
	}
}

// Run is the hub's main loop; it closes every client when ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	h.log.Info().Msg("hub started")

	go h.reportMetrics(ctx)

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case c := <-h.register:
			h.registerClient(c)

		case c := <-h.unregister:
			h.unregisterClient(c)

		case u := <-h.broadcast:
			h.broadcastUpdate(u)
		}
	}
}

// Register adds a client to the hub
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// PublishEdge implements contracts.Publisher
func (h *Hub) PublishEdge(_ context.Context, edge models.Edge) error {
	h.enqueue(update{
		league: edge.League,
		market: edge.MarketType,
		message: ServerMessage{
			Type:      MessageTypeEdge,
			Payload:   edge,
			Timestamp: time.Now().UTC(),
		},
	})
	return nil
}

// PublishRecommendation implements contracts.Publisher
func (h *Hub) PublishRecommendation(_ context.Context, rec models.BetRecommendation) error {
	h.enqueue(update{
		league: rec.Edge.League,
		market: rec.Edge.MarketType,
		tier:   rec.Tier,
		message: ServerMessage{
			Type:      MessageTypeRecommendation,
			Payload:   rec,
			Timestamp: time.Now().UTC(),
		},
	})
	return nil
}

// enqueue never blocks the detection engine; a full buffer drops the message
func (h *Hub) enqueue(u update) {
	select {
	case h.broadcast <- u:
	default:
		h.dropped.Add(1)
		h.log.Warn().Str("type", string(u.message.Type)).Msg("broadcast buffer full, dropping message")
	}
}

func (h *Hub) registerClient(c *Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	h.clients[c] = true
	h.totalConnections.Add(1)
	h.log.Info().Str("client", c.ID).Int("total", len(h.clients)).Msg("client connected")
}

func (h *Hub) unregisterClient(c *Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.log.Info().Str("client", c.ID).Int("total", len(h.clients)).Msg("client disconnected")
	}
}

// broadcastUpdate sends an update to every client whose filter matches.
// Clients too slow to keep up are disconnected.
func (h *Hub) broadcastUpdate(u update) {
	h.clientsMu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.RUnlock()

	sent := 0
	for _, c := range clients {
		if !c.Filter().matches(u) {
			continue
		}
		if c.trySend(u.message) {
			sent++
			continue
		}
		h.log.Warn().Str("client", c.ID).Msg("client buffer full, disconnecting")
		go h.Unregister(c)
	}

	if sent > 0 {
		h.totalMessages.Add(1)
	}
}

// Stats is a snapshot of the hub counters
type Stats struct {
	ActiveClients     int   `json:"active_clients"`
	TotalConnections  int64 `json:"total_connections"`
	TotalMessages     int64 `json:"total_messages"`
	DroppedMessages   int64 `json:"dropped_messages"`
	BroadcastCapacity int   `json:"broadcast_capacity"`
	BroadcastUsage    int   `json:"broadcast_usage"`
}

// Stats returns the hub counters
func (h *Hub) Stats() Stats {
	return Stats{
		ActiveClients:     h.ClientCount(),
		TotalConnections:  h.totalConnections.Load(),
		TotalMessages:     h.totalMessages.Load(),
		DroppedMessages:   h.dropped.Load(),
		BroadcastCapacity: cap(h.broadcast),
		BroadcastUsage:    len(h.broadcast),
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

func (h *Hub) shutdown() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	h.log.Info().Int("clients", len(h.clients)).Msg("shutting down hub")
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) reportMetrics(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := h.Stats()
			h.log.Debug().
				Int("clients", stats.ActiveClients).
				Int64("total_connections", stats.TotalConnections).
				Int64("messages", stats.TotalMessages).
				Int64("dropped", stats.DroppedMessages).
				Msg("hub metrics")
		}
	}
}

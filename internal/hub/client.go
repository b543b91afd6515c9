package hub

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096

	sendBufferSize = 256
)

// Client is one live-feed WebSocket connection
type Client struct {
	ID   string
	conn *websocket.Conn
	send chan ServerMessage
	hub  *Hub

	filter   Filter
	filterMu sync.RWMutex

	connectedAt      time.Time
	messagesSent     atomic.Int64
	messagesReceived atomic.Int64
}

// NewClient creates a client for an upgraded connection
func NewClient(id string, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		ID:          id,
		conn:        conn,
		send:        make(chan ServerMessage, sendBufferSize),
		hub:         hub,
		connectedAt: time.Now().UTC(),
	}
}

// ReadPump handles subscription messages until the connection closes
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if ctx.Err() != nil {
			return
		}

		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn().Err(err).Str("client", c.ID).Msg("unexpected close")
			}
			return
		}

		c.messagesReceived.Add(1)
		c.handleClientMessage(msg)
	}
}

// WritePump writes queued messages and keepalive pings to the connection
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.hub.log.Warn().Err(err).Str("client", c.ID).Msg("write failed")
				return
			}
			c.messagesSent.Add(1)

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// trySend queues a message without blocking; false means the buffer is full
func (c *Client) trySend(msg ServerMessage) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// SetFilter replaces the client's subscription filter
func (c *Client) SetFilter(filter Filter) {
	c.filterMu.Lock()
	defer c.filterMu.Unlock()
	c.filter = filter
}

// Filter returns the client's subscription filter
func (c *Client) Filter() Filter {
	c.filterMu.RLock()
	defer c.filterMu.RUnlock()
	return c.filter
}

// Stats returns connection statistics
func (c *Client) Stats() ClientStats {
	return ClientStats{
		ClientID:         c.ID,
		ConnectedAt:      c.connectedAt,
		MessagesSent:     c.messagesSent.Load(),
		MessagesReceived: c.messagesReceived.Load(),
		BufferSize:       sendBufferSize,
		BufferUsage:      len(c.send),
	}
}

func (c *Client) handleClientMessage(msg ClientMessage) {
	switch msg.Type {
	case MessageTypeSubscribe:
		var filter Filter
		if msg.Filter != nil {
			filter = *msg.Filter
		}
		c.SetFilter(filter)
		c.reply(MessageTypeSubscribed, filter)
		c.hub.log.Debug().Str("client", c.ID).Strs("leagues", filter.Leagues).Msg("client subscribed")
	case MessageTypeUnsubscribe:
		c.SetFilter(Filter{})
		c.reply(MessageTypeSubscribed, Filter{})
	case MessageTypeHeartbeat:
		c.reply(MessageTypeHeartbeat, c.Stats())
	default:
		c.reply(MessageTypeError, ErrorMessage{
			Code:    "unknown_message_type",
			Message: fmt.Sprintf("unknown message type: %s", msg.Type),
		})
	}
}

// reply queues a direct response; the hub lock keeps it from racing the
// hub closing the send channel
func (c *Client) reply(t MessageType, payload interface{}) {
	c.hub.clientsMu.RLock()
	defer c.hub.clientsMu.RUnlock()

	if !c.hub.clients[c] {
		return
	}
	c.trySend(ServerMessage{
		Type:      t,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
}

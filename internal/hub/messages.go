package hub

import (
	"slices"
	"time"

	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"
)

// MessageType identifies a feed message
type MessageType string

const (
	MessageTypeEdge           MessageType = "edge"
	MessageTypeRecommendation MessageType = "recommendation"
	MessageTypeSubscribe      MessageType = "subscribe"
	MessageTypeUnsubscribe    MessageType = "unsubscribe"
	MessageTypeSubscribed     MessageType = "subscribed"
	MessageTypeHeartbeat      MessageType = "heartbeat"
	MessageTypeError          MessageType = "error"
)

// ServerMessage is sent to feed clients
type ServerMessage struct {
	Type      MessageType `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ClientMessage is received from feed clients
type ClientMessage struct {
	Type   MessageType `json:"type"`
	Filter *Filter     `json:"filter,omitempty"`
}

// ErrorMessage is the payload of an error message
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Filter narrows what a client receives. Empty fields match everything;
// MinTier only applies to recommendations.
type Filter struct {
	Leagues []string            `json:"leagues,omitempty"`
	Markets []models.MarketType `json:"markets,omitempty"`
	MinTier models.Tier         `json:"min_tier,omitempty"`
}

// ClientStats describes one connection
type ClientStats struct {
	ClientID         string    `json:"client_id"`
	ConnectedAt      time.Time `json:"connected_at"`
	MessagesSent     int64     `json:"messages_sent"`
	MessagesReceived int64     `json:"messages_received"`
	BufferSize       int       `json:"buffer_size"`
	BufferUsage      int       `json:"buffer_usage"`
}

// update is a message plus the attributes filters match on
type update struct {
	league  string
	market  models.MarketType
	tier    models.Tier
	message ServerMessage
}

// matches reports whether an update passes the filter
func (f Filter) matches(u update) bool {
	if len(f.Leagues) > 0 && !slices.Contains(f.Leagues, u.league) {
		return false
	}
	if len(f.Markets) > 0 && !slices.Contains(f.Markets, u.market) {
		return false
	}
	if f.MinTier != "" && u.tier != "" && u.tier.Rank() < f.MinTier.Rank() {
		return false
	}
	return true
}

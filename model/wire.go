// model/wire.go
package model

import "time"

// Envelope is the one-object-per-message wire format on a news websocket.
// Exactly one of Data/Message is set depending on Type.
type Envelope struct {
	Type      string    `json:"type"`
	Data      *NewsItem `json:"data,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp float64   `json:"timestamp"`
}

const (
	MessagePing      = "ping"
	MessagePong      = "pong"
	MessageSubscribe = "subscribe"
	MessageNewsItem  = "news_item"
	MessageError     = "error"
)

// InboundMessage is what subscribers send over the websocket.
type InboundMessage struct {
	Type    string        `json:"type"`
	Filters *Subscription `json:"filters,omitempty"`
}

// NewsEnvelope wraps a processed item for delivery.
func NewsEnvelope(item *NewsItem) Envelope {
	return Envelope{Type: MessageNewsItem, Data: item, Timestamp: UnixNow()}
}

// ErrorEnvelope builds an inline error reply; it never closes the connection.
func ErrorEnvelope(msg string) Envelope {
	return Envelope{Type: MessageError, Message: msg, Timestamp: UnixNow()}
}

// PongEnvelope answers a liveness ping.
func PongEnvelope() Envelope {
	return Envelope{Type: MessagePong, Timestamp: UnixNow()}
}

// UnixNow returns the current time as a unix-epoch float, the timestamp
// convention of the wire protocol.
func UnixNow() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

package domain

import "time"

// FeedStatus is a point-in-time summary of the market data connection.
// Healthy means connected and receiving raw traffic within the idle window;
// parse failures do not make a feed unhealthy.
type FeedStatus struct {
	Connected        bool      `json:"connected"`
	Healthy          bool      `json:"healthy"`
	LastMessageAt    time.Time `json:"last_message_at"`
	MessagesReceived uint64    `json:"messages_received"`
	ParseErrors      uint64    `json:"parse_errors"`
	Reconnects       uint64    `json:"reconnects"`
}

// Package adapter defines the transport adapter contract for Tether.
//
// An Adapter represents one live connection to a remote endpoint behind a
// uniform lifecycle: connect, send, receive, disconnect. Transport families
// differ in how inbound data arrives (push-style brokers deliver it via a
// callback, duplex/poll-style transports read it actively), but every
// implementation routes received payloads through the shared accounting in
// the base package so metrics, sampling, and handler dispatch behave the
// same regardless of protocol.
package adapter

import (
	"context"
	"time"
)

// ConnectionStatus represents the lifecycle state of a connection
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusReconnecting ConnectionStatus = "reconnecting"
	StatusError        ConnectionStatus = "error"
)

// CanTransition reports whether moving from s to next is a legal lifecycle
// transition. Any state may move to StatusError on an unrecoverable fault.
func (s ConnectionStatus) CanTransition(next ConnectionStatus) bool {
	if next == StatusError {
		return true
	}
	switch s {
	case StatusDisconnected, StatusError:
		return next == StatusConnecting
	case StatusConnecting:
		return next == StatusConnected || next == StatusReconnecting
	case StatusReconnecting:
		return next == StatusConnected
	case StatusConnected:
		return next == StatusDisconnected
	}
	return false
}

// MessageHandler is invoked for every inbound payload. A returned error is
// routed to the adapter's error path; it never aborts the receive loop.
type MessageHandler func(ctx context.Context, data []byte) error

// ErrorHandler is invoked for every error reaching the adapter's error path.
// A returned error is logged and discarded.
type ErrorHandler func(ctx context.Context, err error) error

// Adapter is the contract every transport implements. One instance owns one
// live connection, its metrics, its sample buffer, and its background
// goroutines.
type Adapter interface {
	// Name returns the transport label (e.g. "mqtt", "rest", "kafka").
	Name() string

	// ConnectionID returns the identifier assigned on connect, or the empty
	// string after teardown.
	ConnectionID() string

	// Connect establishes the connection, driving the transport handshake
	// through the retry/backoff policy, and starts the receive loop.
	Connect(ctx context.Context) error

	// Send pushes data through the connection and returns the number of
	// bytes written. It fails with a connection error when the adapter is
	// not in StatusConnected.
	Send(ctx context.Context, data []byte) (int, error)

	// Disconnect stops the receive loop, cancels and joins all background
	// goroutines, and resets status to StatusDisconnected. Calling it on an
	// already-disconnected adapter is a no-op.
	Disconnect(ctx context.Context) error

	// Halt flips the running flag without cancelling or joining background
	// goroutines. Used by forced disconnects; may leak a goroutine until it
	// next observes the flag.
	Halt()

	// Status returns the current connection status.
	Status() ConnectionStatus

	// StatusText returns a human/agent-readable status line derived from the
	// current state and metrics. Never errors.
	StatusText() string

	// Sample returns up to n characters of recently received payload, or a
	// fixed sentinel when nothing has arrived. Never errors.
	Sample(n int) string

	// Metrics returns a point-in-time copy of the connection counters.
	Metrics() MetricsSnapshot

	// SetMessageHandler registers the callback for inbound payloads.
	SetMessageHandler(h MessageHandler)

	// SetErrorHandler registers the callback for adapter errors.
	SetErrorHandler(h ErrorHandler)
}

// MetricsSnapshot is a point-in-time copy of a connection's counters.
// Counters are monotonically non-decreasing for the lifetime of one adapter
// instance and are mutated only by the adapter that owns them.
type MetricsSnapshot struct {
	ConnectedAt       *time.Time `json:"connected_at,omitempty"`
	MessagesSent      int64      `json:"messages_sent"`
	MessagesReceived  int64      `json:"messages_received"`
	BytesSent         int64      `json:"bytes_sent"`
	BytesReceived     int64      `json:"bytes_received"`
	Errors            int64      `json:"errors"`
	ReconnectAttempts int64      `json:"reconnect_attempts"`
	LastActivity      *time.Time `json:"last_activity,omitempty"`
}

// Package base provides the foundational BaseAdapter that all Tether
// transport adapters embed. It implements the shared lifecycle machinery:
// status tracking, connection metrics, the retry/backoff executor, the
// sample buffer, handler dispatch with failure isolation, and structured
// background goroutine bookkeeping.
//
// Transport packages embed BaseAdapter and implement only the
// protocol-specific pieces:
//
//	type MyAdapter struct {
//	    *base.BaseAdapter
//	    // transport-specific fields
//	}
//
// On receipt of inbound data every transport calls HandleReceivedData, which
// keeps metrics, sampling, and message-handler dispatch identical across
// protocols.
package base

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tether/pkg/adapter"
	"github.com/ajitpratap0/tether/pkg/errors"
	"github.com/ajitpratap0/tether/pkg/logger"
	"github.com/ajitpratap0/tether/pkg/metrics"
)

// BaseAdapter carries the state every transport adapter shares: one config,
// one status, one set of metrics, one sample buffer, and the background
// goroutines owned by the instance.
type BaseAdapter struct {
	config adapter.Config
	logger *zap.Logger

	mu            sync.RWMutex // guards status, statusMessage, connectionID, handlers, retryDelay
	status        adapter.ConnectionStatus
	statusMessage string
	connectionID  string
	retryDelay    time.Duration

	onMessage adapter.MessageHandler
	onError   adapter.ErrorHandler

	// Background goroutine bookkeeping
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	samples *SampleBuffer
	retry   *RetryPolicy

	// Counters, owned exclusively by this instance
	connectedAt       atomic.Int64 // unix nanos, 0 when unset
	lastActivity      atomic.Int64 // unix nanos, 0 when unset
	messagesSent      atomic.Int64
	messagesReceived  atomic.Int64
	bytesSent         atomic.Int64
	bytesReceived     atomic.Int64
	errorCount        atomic.Int64
	reconnectAttempts atomic.Int64
}

// NewBaseAdapter creates the shared adapter state for the given transport
// configuration.
func NewBaseAdapter(cfg adapter.Config) *BaseAdapter {
	return &BaseAdapter{
		config:        cfg,
		logger:        logger.Get().With(zap.String("adapter", cfg.Name)),
		status:        adapter.StatusDisconnected,
		statusMessage: "Connection not configured.",
		samples:       NewSampleBuffer(DefaultSampleCapacity),
		retry:         NewRetryPolicy(cfg.RetryMaxAttempts, cfg.RetryBackoffFactor, cfg.RetryMaxDelay),
	}
}

// Name returns the transport label.
func (b *BaseAdapter) Name() string {
	return b.config.Name
}

// Config returns the adapter configuration.
func (b *BaseAdapter) Config() adapter.Config {
	return b.config
}

// Logger returns the adapter's structured logger.
func (b *BaseAdapter) Logger() *zap.Logger {
	return b.logger
}

// ConnectionID returns the identifier assigned on connect.
func (b *BaseAdapter) ConnectionID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.connectionID
}

// Status returns the current connection status.
func (b *BaseAdapter) Status() adapter.ConnectionStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

// SetStatus moves the connection to the given status. Illegal transitions
// are applied anyway but logged, so a misbehaving transport is visible
// without being able to wedge the lifecycle.
func (b *BaseAdapter) SetStatus(next adapter.ConnectionStatus) {
	b.mu.Lock()
	if !b.status.CanTransition(next) && b.status != next {
		b.logger.Warn("irregular status transition",
			zap.String("from", string(b.status)),
			zap.String("to", string(next)))
	}
	b.status = next
	b.mu.Unlock()
}

// SetStatusMessage stores the message surfaced by StatusText for the
// Disconnected and Error states.
func (b *BaseAdapter) SetStatusMessage(msg string) {
	b.mu.Lock()
	b.statusMessage = msg
	b.mu.Unlock()
}

// SetMessageHandler registers the callback for inbound payloads.
func (b *BaseAdapter) SetMessageHandler(h adapter.MessageHandler) {
	b.mu.Lock()
	b.onMessage = h
	b.mu.Unlock()
}

// SetErrorHandler registers the callback for adapter errors.
func (b *BaseAdapter) SetErrorHandler(h adapter.ErrorHandler) {
	b.mu.Lock()
	b.onError = h
	b.mu.Unlock()
}

// BeginConnect marks the start of a connect attempt: status moves to
// Connecting, a fresh connection identifier is assigned, and the adapter's
// background context is created. The returned context parents all background
// goroutines started with Go.
func (b *BaseAdapter) BeginConnect(ctx context.Context) context.Context {
	b.mu.Lock()
	b.status = adapter.StatusConnecting
	b.connectionID = uuid.NewString()
	b.mu.Unlock()

	bgCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	b.mu.Lock()
	b.ctx, b.cancel = bgCtx, cancel
	b.mu.Unlock()
	b.running.Store(true)
	return bgCtx
}

// ConnectWithRetry drives the transport handshake through the retry policy.
// Each failure increments the reconnect counter; between attempts the status
// is Reconnecting and the pending backoff delay is recorded for StatusText.
// On success the adapter is marked Connected. On exhaustion the status is
// Error, the last fault becomes the status message, and the error is
// surfaced to the caller.
func (b *BaseAdapter) ConnectWithRetry(ctx context.Context, op func(ctx context.Context) error) error {
	err := b.retry.Execute(ctx, op, RetryHooks{
		OnFailure: func(attempt int, err error) {
			b.reconnectAttempts.Add(1)
			metrics.ConnectAttempts.WithLabelValues(b.config.Name, "failure").Inc()
			b.logger.Warn("connect attempt failed",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", b.retry.MaxAttempts),
				zap.Error(err))
		},
		OnBackoff: func(attempt int, delay time.Duration) {
			b.mu.Lock()
			b.status = adapter.StatusReconnecting
			b.retryDelay = delay
			b.mu.Unlock()
			metrics.BackoffDelay.WithLabelValues(b.config.Name).Observe(delay.Seconds())
		},
	})
	if err != nil {
		b.mu.Lock()
		b.status = adapter.StatusError
		b.statusMessage = fmt.Sprintf("Max retry attempts reached: %v", err)
		b.mu.Unlock()
		return err
	}

	b.MarkConnected()
	metrics.ConnectAttempts.WithLabelValues(b.config.Name, "success").Inc()
	return nil
}

// MarkConnected records a successful connect: status Connected, the
// connected-at timestamp set, and the active-connection gauge bumped.
func (b *BaseAdapter) MarkConnected() {
	b.connectedAt.Store(time.Now().UnixNano())
	b.mu.Lock()
	b.status = adapter.StatusConnected
	b.statusMessage = "Connected"
	b.mu.Unlock()
	metrics.ActiveConnections.WithLabelValues(b.config.Name).Inc()
	b.logger.Info("connected", zap.String("connection_id", b.ConnectionID()))
}

// Running reports whether the receive loop should keep going.
func (b *BaseAdapter) Running() bool {
	return b.running.Load()
}

// Halt flips the running flag without cancelling or joining background
// goroutines. Forced disconnects accept the possible goroutine leak in
// exchange for returning immediately.
func (b *BaseAdapter) Halt() {
	b.running.Store(false)
}

// Context returns the adapter's background context, or a cancelled context
// when no connect has happened yet.
func (b *BaseAdapter) Context() context.Context {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.ctx == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	return b.ctx
}

// Go starts a background goroutine owned by this adapter. Panics are
// recovered and routed to the error path; Shutdown joins all goroutines
// started this way.
func (b *BaseAdapter) Go(name string, fn func(ctx context.Context)) {
	ctx := b.Context()
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				b.HandleError(ctx, errors.Newf(errors.ErrorTypeInternal, "panic in %s: %v", name, r))
			}
		}()
		fn(ctx)
	}()
}

// Shutdown stops the receive loop, cancels the background context, joins
// all goroutines, and resets the lifecycle state. Safe to call on an
// already-disconnected adapter.
func (b *BaseAdapter) Shutdown() {
	wasConnected := b.Status() == adapter.StatusConnected

	b.running.Store(false)
	b.mu.RLock()
	cancel := b.cancel
	b.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	b.wg.Wait()

	b.mu.Lock()
	b.status = adapter.StatusDisconnected
	b.statusMessage = "Connection closed."
	b.connectionID = ""
	b.mu.Unlock()

	if wasConnected {
		metrics.ActiveConnections.WithLabelValues(b.config.Name).Dec()
	}
	b.logger.Info("disconnected")
}

// EnsureConnected returns a connection error unless the adapter is
// currently Connected. Send paths call this before writing.
func (b *BaseAdapter) EnsureConnected() error {
	if s := b.Status(); s != adapter.StatusConnected {
		return errors.Newf(errors.ErrorTypeConnection, "not connected (status: %s)", s)
	}
	return nil
}

// RecordSend updates the outbound counters after a successful write.
func (b *BaseAdapter) RecordSend(n int) {
	b.messagesSent.Add(1)
	b.bytesSent.Add(int64(n))
	metrics.MessagesSent.WithLabelValues(b.config.Name).Inc()
	metrics.BytesSent.WithLabelValues(b.config.Name).Add(float64(n))
}

// HandleReceivedData is the single receive path shared by all transports.
// It updates the inbound counters and the sample buffer, then dispatches to
// the registered message handler. A handler failure is isolated: it is
// routed to the error path and never aborts the receive loop.
func (b *BaseAdapter) HandleReceivedData(ctx context.Context, data []byte) {
	b.messagesReceived.Add(1)
	b.bytesReceived.Add(int64(len(data)))
	b.lastActivity.Store(time.Now().UnixNano())
	metrics.MessagesReceived.WithLabelValues(b.config.Name).Inc()
	metrics.BytesReceived.WithLabelValues(b.config.Name).Add(float64(len(data)))

	b.samples.Add(data)

	b.mu.RLock()
	handler := b.onMessage
	b.mu.RUnlock()
	if handler == nil {
		return
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				b.HandleError(ctx, errors.Newf(errors.ErrorTypeHandler, "panic in message handler: %v", r))
			}
		}()
		if err := handler(ctx, data); err != nil {
			b.HandleError(ctx, errors.Wrap(err, errors.ErrorTypeHandler, "message handler failed"))
		}
	}()
}

// HandleError is the single error path shared by all transports. It bumps
// the error counter and dispatches to the registered error handler; a
// failure inside the error handler is logged and goes no further.
func (b *BaseAdapter) HandleError(ctx context.Context, err error) {
	b.errorCount.Add(1)
	metrics.AdapterErrors.WithLabelValues(b.config.Name).Inc()
	b.logger.Error("adapter error", zap.Error(err))

	b.mu.RLock()
	handler := b.onError
	b.mu.RUnlock()
	if handler == nil {
		return
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("panic in error handler", zap.Any("panic", r))
			}
		}()
		if herr := handler(ctx, err); herr != nil {
			b.logger.Error("error handler failed", zap.Error(herr))
		}
	}()
}

// Sample returns up to n characters of recently received payload.
func (b *BaseAdapter) Sample(n int) string {
	return b.samples.Sample(n)
}

// Metrics returns a point-in-time copy of the connection counters.
func (b *BaseAdapter) Metrics() adapter.MetricsSnapshot {
	snap := adapter.MetricsSnapshot{
		MessagesSent:      b.messagesSent.Load(),
		MessagesReceived:  b.messagesReceived.Load(),
		BytesSent:         b.bytesSent.Load(),
		BytesReceived:     b.bytesReceived.Load(),
		Errors:            b.errorCount.Load(),
		ReconnectAttempts: b.reconnectAttempts.Load(),
	}
	if ns := b.connectedAt.Load(); ns != 0 {
		t := time.Unix(0, ns)
		snap.ConnectedAt = &t
	}
	if ns := b.lastActivity.Load(); ns != 0 {
		t := time.Unix(0, ns)
		snap.LastActivity = &t
	}
	return snap
}

// StatusText derives the human/agent-readable status line from the current
// state. Pure read, never errors.
func (b *BaseAdapter) StatusText() string {
	b.mu.RLock()
	status := b.status
	message := b.statusMessage
	retryDelay := b.retryDelay
	b.mu.RUnlock()

	switch status {
	case adapter.StatusConnected:
		if received := b.messagesReceived.Load(); received > 0 {
			return fmt.Sprintf("OK – streaming %.1f msg/s (sample follows)", b.messageRate(received))
		}
		return "OK – connected, waiting for data"
	case adapter.StatusReconnecting:
		return fmt.Sprintf("Connection configured but unreachable: retrying (back-off %.0f s).", retryDelay.Seconds())
	case adapter.StatusError:
		return fmt.Sprintf("Connection error: %s", message)
	case adapter.StatusConnecting:
		return "Connecting..."
	default:
		return message
	}
}

// messageRate computes inbound messages per second since connect.
func (b *BaseAdapter) messageRate(received int64) float64 {
	ns := b.connectedAt.Load()
	if ns == 0 {
		return 0
	}
	elapsed := time.Since(time.Unix(0, ns)).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(received) / elapsed
}

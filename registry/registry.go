// Package registry owns the set of live delivery connections, one per
// subscriber. Nothing outside the registry holds a connection's send handle
// for longer than a single delivery attempt.
package registry

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"news-stream-service/metrics"
	"news-stream-service/model"
)

var (
	ErrClosed      = errors.New("connection closed")
	ErrSendTimeout = errors.New("send timed out")
)

// Connection is one live delivery channel. Outbound traffic goes through a
// buffered outbox drained by the transport's write pump; Done() closes when
// the connection reaches a terminal state.
type Connection struct {
	UserID string

	outbox chan model.Envelope
	done   chan struct{}
	once   sync.Once

	mu         sync.Mutex
	lastActive time.Time
}

const outboxSize = 256

func newConnection(userID string) *Connection {
	return &Connection{
		UserID:     userID,
		outbox:     make(chan model.Envelope, outboxSize),
		done:       make(chan struct{}),
		lastActive: time.Now(),
	}
}

// Deliver queues msg for the write pump. It fails with ErrClosed once the
// connection is terminal and ErrSendTimeout when the outbox stays full for
// the whole timeout; it never blocks past the timeout.
func (c *Connection) Deliver(msg model.Envelope, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case c.outbox <- msg:
		return nil
	case <-c.done:
		return ErrClosed
	case <-timer.C:
		return ErrSendTimeout
	}
}

// Outbox is read by exactly one write pump.
func (c *Connection) Outbox() <-chan model.Envelope {
	return c.outbox
}

// Done closes when the connection is evicted or closed. Terminal states do
// not transition back; a reconnect is a brand-new Connection.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Close moves the connection to its terminal state. Idempotent.
func (c *Connection) Close() {
	c.once.Do(func() { close(c.done) })
}

// Touch records liveness traffic on the connection.
func (c *Connection) Touch() {
	c.mu.Lock()
	c.lastActive = time.Now()
	c.mu.Unlock()
}

// LastActive returns the time of the most recent liveness traffic.
func (c *Connection) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

// Registry maps subscriber ids to their single live connection.
type Registry struct {
	idleTimeout    time.Duration
	reaperInterval time.Duration

	mu    sync.Mutex
	conns map[string]*Connection
}

func New(idleTimeout, reaperInterval time.Duration) *Registry {
	return &Registry{
		idleTimeout:    idleTimeout,
		reaperInterval: reaperInterval,
		conns:          make(map[string]*Connection),
	}
}

// Register creates and returns a new connection for userID, atomically
// superseding and closing any prior connection for the same id.
func (r *Registry) Register(userID string) *Connection {
	conn := newConnection(userID)

	r.mu.Lock()
	prior := r.conns[userID]
	r.conns[userID] = conn
	r.mu.Unlock()

	if prior != nil {
		prior.Close()
		metrics.ConnectionsEvicted.WithLabelValues("superseded").Inc()
		log.Printf("Connection for user=%s superseded", userID)
	}

	metrics.ActiveConnections.Set(float64(r.Count()))
	log.Printf("User %s connected, active connections: %d", userID, r.Count())
	return conn
}

// Deregister removes and closes the connection for userID. Removing an
// absent id is a no-op.
func (r *Registry) Deregister(userID string) {
	r.mu.Lock()
	conn := r.conns[userID]
	delete(r.conns, userID)
	r.mu.Unlock()

	if conn == nil {
		return
	}
	conn.Close()
	metrics.ActiveConnections.Set(float64(r.Count()))
	log.Printf("User %s disconnected, active connections: %d", userID, r.Count())
}

// Evict removes conn only if it is still the live connection for its user,
// so a failure on a superseded connection never tears down its replacement.
func (r *Registry) Evict(conn *Connection, reason string) {
	r.mu.Lock()
	current := r.conns[conn.UserID]
	if current == conn {
		delete(r.conns, conn.UserID)
	}
	r.mu.Unlock()

	conn.Close()
	if current == conn {
		metrics.ConnectionsEvicted.WithLabelValues(reason).Inc()
		metrics.ActiveConnections.Set(float64(r.Count()))
		log.Printf("Evicted connection user=%s reason=%s", conn.UserID, reason)
	}
}

// Active returns a snapshot of the live connections. Callers iterate the
// snapshot; concurrent register/deregister never invalidates it.
func (r *Registry) Active() []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		snapshot = append(snapshot, conn)
	}
	return snapshot
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Start runs the liveness reaper until ctx is cancelled: connections without
// any inbound traffic for longer than the idle timeout are evicted.
func (r *Registry) Start(ctx context.Context) {
	ticker := time.NewTicker(r.reaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reapIdle()
		}
	}
}

func (r *Registry) reapIdle() {
	cutoff := time.Now().Add(-r.idleTimeout)
	for _, conn := range r.Active() {
		if conn.LastActive().Before(cutoff) {
			r.Evict(conn, "idle")
		}
	}
}

// CloseAll deregisters every connection, notifying subscribers where the
// transport still accepts writes. Used on shutdown.
func (r *Registry) CloseAll() {
	for _, conn := range r.Active() {
		r.Deregister(conn.UserID)
	}
}

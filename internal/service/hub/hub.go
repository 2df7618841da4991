// Package hub fans newly stored signals out to live subscriber connections.
// The hub owns the connection registry and the heartbeat sweep; transports
// plug in behind the Sink interface so the hub itself stays independent of
// any particular socket library.
package hub

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"SigPulse/internal/domain/models"
	drepo "SigPulse/internal/domain/repository"
	xlogger "SigPulse/pkg/logger"

	"github.com/google/uuid"
)

// Message is one server→client frame. Kinds: "signal", "stats", "pong".
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Sink is the transport half of a connection. WriteJSON must be safe to
// call from the connection's writer goroutine only; Close must be
// idempotent.
type Sink interface {
	WriteJSON(v interface{}) error
	Ping() error
	Close() error
}

// Conn is one live subscriber, owned by the hub for its lifetime.
type Conn struct {
	ID          string
	ConnectedAt time.Time

	sink Sink
	send chan *Message
	done chan struct{}

	mu         sync.Mutex
	alive      bool
	explicit   bool // false: subscribed to everything
	categories map[models.Category]struct{}

	closeOnce sync.Once
}

// wants reports whether the connection's subscription set contains cat.
func (c *Conn) wants(cat models.Category) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.explicit {
		return true
	}
	_, ok := c.categories[cat]
	return ok
}

// Subscribe adds categories. The first explicit subscribe narrows the
// default all-categories subscription to exactly the given set.
func (c *Conn) Subscribe(cats ...models.Category) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.explicit {
		c.explicit = true
		c.categories = make(map[models.Category]struct{})
	}
	for _, cat := range cats {
		c.categories[cat] = struct{}{}
	}
}

// Unsubscribe removes categories. On a default (all) subscription it first
// materializes the full set, then removes.
func (c *Conn) Unsubscribe(cats ...models.Category) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.explicit {
		c.explicit = true
		c.categories = make(map[models.Category]struct{}, len(drepo.AllCategories))
		for _, cat := range drepo.AllCategories {
			c.categories[cat] = struct{}{}
		}
	}
	for _, cat := range cats {
		delete(c.categories, cat)
	}
}

// Send queues a frame to this connection only. Non-blocking; reports
// whether the frame fit in the queue.
func (c *Conn) Send(msg *Message) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// MarkAlive resets the liveness flag; called on any client ping or pong.
func (c *Conn) MarkAlive() {
	c.mu.Lock()
	c.alive = true
	c.mu.Unlock()
}

func (c *Conn) isAlive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive
}

func (c *Conn) markStale() {
	c.mu.Lock()
	c.alive = false
	c.mu.Unlock()
}

// Stats reports hub-level observability counters, none of it persisted.
type Stats struct {
	Connections int    `json:"connections"`
	Delivered   uint64 `json:"delivered"`
	Dropped     uint64 `json:"dropped"`
	Evicted     uint64 `json:"evicted"`
}

// Hub is the broadcast fan-out service.
type Hub struct {
	heartbeat  time.Duration
	sendBuffer int
	metrics    drepo.Metrics
	logger     *xlogger.Logger

	mu    sync.RWMutex
	conns map[string]*Conn

	delivered atomic.Uint64
	dropped   atomic.Uint64
	evicted   atomic.Uint64
}

func New(heartbeat time.Duration, sendBuffer int, metrics drepo.Metrics, logger *xlogger.Logger) *Hub {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	return &Hub{
		heartbeat:  heartbeat,
		sendBuffer: sendBuffer,
		metrics:    metrics,
		logger:     logger,
		conns:      make(map[string]*Conn),
	}
}

// Register adds a connection with the default all-categories subscription
// and starts its writer goroutine.
func (h *Hub) Register(sink Sink) *Conn {
	c := &Conn{
		ID:          uuid.New().String(),
		ConnectedAt: time.Now().UTC(),
		sink:        sink,
		send:        make(chan *Message, h.sendBuffer),
		done:        make(chan struct{}),
		alive:       true,
	}

	h.mu.Lock()
	h.conns[c.ID] = c
	n := len(h.conns)
	h.mu.Unlock()
	h.metrics.SetHubConnections(n)

	go h.writer(c)
	h.logger.Info("hub connection opened", xlogger.String("conn_id", c.ID), xlogger.Int("connections", n))
	return c
}

// Unregister removes and closes a connection. Safe to call more than once.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	c, ok := h.conns[id]
	if ok {
		delete(h.conns, id)
	}
	n := len(h.conns)
	h.mu.Unlock()
	if !ok {
		return
	}

	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.sink.Close()
	})
	h.metrics.SetHubConnections(n)
	h.logger.Info("hub connection closed", xlogger.String("conn_id", id), xlogger.Int("connections", n))
}

// writer is the single goroutine allowed to touch the sink. A blocked or
// broken consumer only ever stalls its own queue.
func (h *Hub) writer(c *Conn) {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.sink.WriteJSON(msg); err != nil {
				h.logger.Warn("hub write failed", xlogger.String("conn_id", c.ID), xlogger.Error(err))
				h.Unregister(c.ID)
				return
			}
			h.delivered.Add(1)
		}
	}
}

// Publish delivers the signal to every open connection subscribed to its
// category. Enqueue is non-blocking: a full queue drops the frame for that
// connection only. Returns the number of connections the frame was queued
// to.
func (h *Hub) Publish(s *models.Signal) int {
	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		if c.wants(s.Category) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	msg := &Message{Type: "signal", Payload: s}
	queued := 0
	for _, c := range targets {
		select {
		case c.send <- msg:
			queued++
		default:
			h.dropped.Add(1)
			h.metrics.RecordError("hub_queue_full")
		}
	}
	return queued
}

// Broadcast sends an arbitrary frame to every connection, subscription set
// ignored. Used for stats pushes.
func (h *Hub) Broadcast(msg *Message) {
	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.send <- msg:
		default:
			h.dropped.Add(1)
		}
	}
}

// Run drives the heartbeat sweep until ctx is done. Each tick evicts
// connections that failed to respond since the previous tick, then probes
// the rest and marks them stale until they answer.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-ticker.C:
			h.sweep()
			h.Broadcast(&Message{Type: "stats", Payload: h.Stats()})
		}
	}
}

func (h *Hub) sweep() {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if !c.isAlive() {
			h.evicted.Add(1)
			h.logger.Warn("hub evicting dead connection", xlogger.String("conn_id", c.ID))
			h.Unregister(c.ID)
			continue
		}
		c.markStale()
		if err := c.sink.Ping(); err != nil {
			h.evicted.Add(1)
			h.Unregister(c.ID)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	ids := make([]string, 0, len(h.conns))
	for id := range h.conns {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	for _, id := range ids {
		h.Unregister(id)
	}
}

// Stats snapshots the hub counters.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	n := len(h.conns)
	h.mu.RUnlock()
	return Stats{
		Connections: n,
		Delivered:   h.delivered.Load(),
		Dropped:     h.dropped.Load(),
		Evicted:     h.evicted.Load(),
	}
}

var _ drepo.Broadcaster = (*Hub)(nil)

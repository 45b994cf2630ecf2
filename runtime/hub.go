// Package runtime holds the connection registry and the event hub.
// It routes events between connections without knowing anything about
// comment merge rules, which live on the receiving side.
package runtime

import (
	"context"
	"estate-live/contract"
	"estate-live/domain/event"
	"estate-live/errors"
	"estate-live/observability"
	"fmt"
	"log/slog"
	"sync"

	"github.com/samber/lo"
)

var _ contract.IEventHub = (*Hub)(nil)

// Hub relays domain events between live connections.
//
// Broadcast kinds go to every attached connection, the publisher included.
// Direct messages go to the single connection registered for the receiver,
// or nowhere. Delivery is attempted once per connection and never retried,
// nothing is buffered for connections that attach later.
type Hub struct {
	mu       sync.RWMutex
	log      *slog.Logger
	registry contract.IRegistry
	conns    map[contract.ConnectionID]contract.Connection
	inbound  chan contract.Inbound
	metrics  *observability.Metrics
}

func NewHub(log *slog.Logger, registry contract.IRegistry, metrics *observability.Metrics, bufferSize int) *Hub {
	return &Hub{
		log:      log,
		registry: registry,
		conns:    make(map[contract.ConnectionID]contract.Connection),
		inbound:  make(chan contract.Inbound, bufferSize),
		metrics:  metrics,
	}
}

// Attach makes the connection a broadcast target. It is not reachable by
// unicast until it announces a user.
func (h *Hub) Attach(conn contract.Connection) {
	h.mu.Lock()
	h.conns[conn.ID()] = conn
	n := len(h.conns)
	h.mu.Unlock()

	h.metrics.Connections.Set(float64(n))
	h.log.Debug("Connection attached", "connection_id", conn.ID(), "connections", n)
}

// Detach forgets the connection and its registry entry, if any.
// The registry entry is released under the same lock Announce holds, so a
// detached handle can never be registered afterwards.
func (h *Hub) Detach(handle contract.ConnectionID) {
	h.mu.Lock()
	h.registry.Unregister(handle)
	_, ok := h.conns[handle]
	delete(h.conns, handle)
	n := len(h.conns)
	h.mu.Unlock()

	if !ok {
		return
	}
	h.metrics.Connections.Set(float64(n))
	h.metrics.RegisteredUsers.Set(float64(h.registry.Len()))
	h.log.Debug("Connection detached", "connection_id", handle, "connections", n)
}

func (h *Hub) Announce(handle contract.ConnectionID, userID string) {
	if userID == "" {
		h.log.Debug("Ignoring announce without user", "connection_id", handle)
		return
	}
	h.mu.Lock()
	_, attached := h.conns[handle]
	stored := attached && h.registry.Register(userID, handle)
	h.mu.Unlock()

	if !attached {
		h.log.Debug("Ignoring announce from detached connection", "connection_id", handle, "user_id", userID)
		return
	}
	h.metrics.RegisteredUsers.Set(float64(h.registry.Len()))
	if !stored {
		h.log.Info("User already registered on another connection, announce ignored",
			"connection_id", handle, "user_id", userID)
		return
	}
	h.log.Debug("User registered", "connection_id", handle, "user_id", userID)
}

// Publish routes one event and returns how many connections accepted it.
// An unreachable receiver is not an error.
func (h *Hub) Publish(_ context.Context, from contract.ConnectionID, evt event.DomainEvent) (int, error) {
	if err := event.Validate(evt); err != nil {
		if evt != nil {
			h.metrics.RejectedEvents.WithLabelValues(string(evt.Kind())).Inc()
		}
		h.log.Warn("Rejected event", "connection_id", from, "error", err)
		return 0, err
	}
	h.metrics.InboundEvents.WithLabelValues(string(evt.Kind())).Inc()

	if dm, ok := evt.(event.DirectMessage); ok {
		return h.unicast(dm), nil
	}
	if event.IsBroadcast(evt.Kind()) {
		return h.broadcast(evt), nil
	}
	return 0, fmt.Errorf("%w: %s", errors.ErrUnknownEvent, evt.Kind())
}

// Submit queues an inbound signal for the dispatch worker without blocking
// the connection that produced it.
func (h *Hub) Submit(in contract.Inbound) error {
	select {
	case h.inbound <- in:
		return nil
	default:
		h.log.Warn("Hub inbound queue full, dropping signal", "connection_id", in.From, "kind", in.Kind)
		return errors.ErrHubQueueFull
	}
}

func (h *Hub) Inbound() <-chan contract.Inbound {
	return h.inbound
}

// Handle applies one inbound signal. It is called by the dispatch worker, in
// the order signals were submitted.
func (h *Hub) Handle(ctx context.Context, in contract.Inbound) {
	switch in.Kind {
	case contract.SignalAnnounce:
		h.Announce(in.From, in.UserID)
	case contract.SignalDisconnect:
		h.Detach(in.From)
	case contract.SignalEvent:
		if _, err := h.Publish(ctx, in.From, in.Event); err != nil {
			h.log.Debug("Event not relayed", "connection_id", in.From, "error", err)
		}
	default:
		h.log.Warn("Unknown inbound signal", "connection_id", in.From, "kind", in.Kind)
	}
}

// CloseAll closes every attached connection. Their pumps detach them.
func (h *Hub) CloseAll() int {
	h.mu.RLock()
	targets := lo.Values(h.conns)
	h.mu.RUnlock()

	for _, conn := range targets {
		conn.Close()
	}
	h.log.Info("Closed all connections", "connections", len(targets))
	return len(targets)
}

func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) Registry() contract.IRegistry {
	return h.registry
}

func (h *Hub) unicast(dm event.DirectMessage) int {
	handle, ok := h.registry.Resolve(dm.ReceiverID)
	if !ok {
		h.log.Debug("Receiver not connected, message dropped", "receiver_id", dm.ReceiverID)
		return 0
	}
	conn, ok := h.connection(handle)
	if !ok {
		return 0
	}
	// The receiver only sees the payload.
	delivered := event.DirectMessage{Data: dm.Data}
	if !h.deliver(conn, delivered) {
		return 0
	}
	return 1
}

func (h *Hub) broadcast(evt event.DomainEvent) int {
	h.mu.RLock()
	targets := make([]contract.Connection, 0, len(h.conns))
	for _, conn := range h.conns {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	count := 0
	for _, conn := range targets {
		if h.deliver(conn, evt) {
			count++
		}
	}
	return count
}

// deliver hands the event to the connection queue. A connection that cannot
// take it is treated as gone: it is closed so its pumps detach it.
func (h *Hub) deliver(conn contract.Connection, evt event.DomainEvent) bool {
	if conn.Send(evt) {
		h.metrics.Deliveries.WithLabelValues(string(evt.Kind()), observability.OutcomeSent).Inc()
		return true
	}
	h.metrics.Deliveries.WithLabelValues(string(evt.Kind()), observability.OutcomeDropped).Inc()
	h.log.Debug("Delivery dropped, closing connection", "connection_id", conn.ID(), "kind", evt.Kind())
	conn.Close()
	return false
}

func (h *Hub) connection(handle contract.ConnectionID) (contract.Connection, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conn, ok := h.conns[handle]
	return conn, ok
}

package sink

import (
	"context"
	"estate-live/contract"
	"estate-live/domain/event"
	"estate-live/errors"
	"sync"

	"github.com/google/uuid"
)

var (
	_ contract.Connection = (*ConnectionSink)(nil)
	_ contract.EventSink  = (*ConnectionSink)(nil)
)

// ConnectionSink is the outbound queue of one connection.
// The hub pushes into it without blocking, the transport write pump drains it.
// The events channel is never closed, so a late Send after Close is harmless.
type ConnectionSink struct {
	id     contract.ConnectionID
	events chan event.DomainEvent
	done   chan struct{}
	once   sync.Once
}

func NewConnectionSink(bufferSize int) *ConnectionSink {
	return &ConnectionSink{
		id:     contract.ConnectionID(uuid.NewString()),
		events: make(chan event.DomainEvent, bufferSize),
		done:   make(chan struct{}),
	}
}

func (s *ConnectionSink) ID() contract.ConnectionID { return s.id }

// Send queues the event. It returns false when the sink is closed or full.
func (s *ConnectionSink) Send(evt event.DomainEvent) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.events <- evt:
		return true
	default:
		return false
	}
}

// Consume lets the sink be used as a plain event sink by in-process subscribers.
func (s *ConnectionSink) Consume(ctx context.Context, e event.DomainEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.Send(e) {
		return errors.ErrConnectionClosed
	}
	return nil
}

func (s *ConnectionSink) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *ConnectionSink) Events() <-chan event.DomainEvent { return s.events }

func (s *ConnectionSink) Done() <-chan struct{} { return s.done }

package workers

import (
	"context"
	"estate-live/contract"
	"log/slog"
)

var _ contract.Worker = (*DispatchWorker)(nil)

// InboundHandler applies one inbound signal to the hub.
type InboundHandler interface {
	Handle(ctx context.Context, in contract.Inbound)
}

// DispatchWorker drains the hub inbound queue in submission order.
// There is exactly one per hub: a single consumer keeps the events of one
// publisher in the order its transport delivered them.
type DispatchWorker struct {
	inbound <-chan contract.Inbound
	handler InboundHandler
	log     *slog.Logger
}

func NewDispatchWorker(inbound <-chan contract.Inbound, handler InboundHandler, log *slog.Logger) *DispatchWorker {
	return &DispatchWorker{inbound: inbound, handler: handler, log: log}
}

func (w *DispatchWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping dispatch worker")
			return ctx.Err()
		case in, ok := <-w.inbound:
			if !ok {
				w.log.Debug("Inbound channel is closed")
				return nil
			}
			w.handler.Handle(ctx, in)
		}
	}
}

//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"estate-live/domain/comment"
	"estate-live/domain/event"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// ConnectionID is the opaque transport-level handle of a live connection.
type ConnectionID string

// Connection is the hub side of one live transport connection.
// Send never blocks: it returns false when the event could not be queued,
// which the hub treats exactly like a disconnected peer.
type Connection interface {
	ID() ConnectionID
	Send(evt event.DomainEvent) bool
	Close()
}

type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

type IRegistry interface {
	Register(userID string, handle ConnectionID) bool
	Resolve(userID string) (ConnectionID, bool)
	Unregister(handle ConnectionID)
	Len() int
	Users() []string
}

type SignalKind int

const (
	SignalAnnounce SignalKind = iota
	SignalEvent
	SignalDisconnect
)

// Inbound is whatever a connection hands to the hub: an announce, a domain
// event or the disconnect of the transport.
type Inbound struct {
	From   ConnectionID
	Kind   SignalKind
	UserID string
	Event  event.DomainEvent
}

type IEventHub interface {
	Attach(conn Connection)
	Detach(handle ConnectionID)
	Announce(handle ConnectionID, userID string)
	Publish(ctx context.Context, from ConnectionID, evt event.DomainEvent) (int, error)
	Submit(in Inbound) error
}

// ICommentAPI is the external CRUD service owning comments and replies.
// Every failure is reported as a retryable errors.ErrCrudFailure.
type ICommentAPI interface {
	GetComments(ctx context.Context, postID string) ([]comment.Comment, error)
	CreateComment(ctx context.Context, postID, userID, text string) (comment.Comment, error)
	UpdateComment(ctx context.Context, commentID, text string) (comment.Comment, error)
	DeleteComment(ctx context.Context, commentID string) error
	CreateReply(ctx context.Context, commentID, userID, text string) (comment.Reply, error)
	DeleteReply(ctx context.Context, replyID string) error
	LikeComment(ctx context.Context, commentID string) error
	UnlikeComment(ctx context.Context, commentID string) error
}

// IPublisher is the client side of the hub transport.
type IPublisher interface {
	Announce(ctx context.Context, userID string) error
	Publish(ctx context.Context, evt event.DomainEvent) error
}

type ILikedRepository interface {
	Load() ([]string, error)
	Save(commentIDs []string) error
}

// Package event defines the domain events relayed by the hub.
//
// Events are immutable values. They carry no sequence number and no
// acknowledgment: delivery is fire-and-forget, at-least-once per connected
// peer and unordered relative to CRUD responses. Receivers must merge them
// idempotently where the merge rule allows it.
package event

import (
	"encoding/json"
	"estate-live/domain/comment"
)

// Kind is also the wire name of the event.
type Kind string

const (
	KindCommentCreated Kind = "commentCreated"
	KindReplyCreated   Kind = "replyCreated"
	KindCommentDeleted Kind = "commentDeleted"
	KindReplyDeleted   Kind = "replyDeleted"
	KindCommentLiked   Kind = "commentLiked"
	KindCommentUnliked Kind = "commentUnliked"
	KindDirectMessage  Kind = "message"
)

type DomainEvent interface {
	Kind() Kind
}

// IsBroadcast reports whether the hub fans the kind out to every connection.
// Every kind except direct messages is broadcast.
func IsBroadcast(k Kind) bool {
	switch k {
	case KindCommentCreated, KindReplyCreated, KindCommentDeleted,
		KindReplyDeleted, KindCommentLiked, KindCommentUnliked:
		return true
	}
	return false
}

type CommentCreated struct {
	Comment comment.Comment
}

func (CommentCreated) Kind() Kind { return KindCommentCreated }

type ReplyCreated struct {
	Reply comment.Reply
}

func (ReplyCreated) Kind() Kind { return KindReplyCreated }

type CommentDeleted struct {
	CommentID string `json:"commentId" validate:"required"`
}

func (CommentDeleted) Kind() Kind { return KindCommentDeleted }

// ReplyDeleted is the single reply deletion event. CommentID is informative only,
// receivers remove the reply from whichever comment currently holds it.
type ReplyDeleted struct {
	ReplyID   string `json:"replyId" validate:"required"`
	CommentID string `json:"commentId,omitempty"`
}

func (ReplyDeleted) Kind() Kind { return KindReplyDeleted }

// CommentLiked is a delta event (+1). Total is only set by publishers that know the
// authoritative counter after the write; stores ignore it unless configured otherwise.
type CommentLiked struct {
	CommentID string `json:"commentId" validate:"required"`
	Total     *int   `json:"total,omitempty" validate:"omitempty,min=0"`
}

func (CommentLiked) Kind() Kind { return KindCommentLiked }

// CommentUnliked is a delta event (-1), see CommentLiked.
type CommentUnliked struct {
	CommentID string `json:"commentId" validate:"required"`
	Total     *int   `json:"total,omitempty" validate:"omitempty,min=0"`
}

func (CommentUnliked) Kind() Kind { return KindCommentUnliked }

// DirectMessage is unicast. ReceiverID is empty once delivered: the receiver
// only ever sees Data.
type DirectMessage struct {
	ReceiverID string          `json:"receiverId"`
	Data       json.RawMessage `json:"data"`
}

func (DirectMessage) Kind() Kind { return KindDirectMessage }

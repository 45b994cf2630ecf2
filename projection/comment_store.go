// Package projection builds the local view of a post's comment thread.
// It merges the authoritative snapshot, the session's own optimistic writes and
// the events relayed by the hub. Deduplication lives here: the hub guarantees
// neither ordering nor single delivery.
// Does not emit events or talk to the CRUD service.
package projection

import (
	"context"
	"estate-live/contract"
	"estate-live/domain/comment"
	"estate-live/domain/event"
	"log/slog"
	"sync"

	"github.com/samber/lo"
)

// LikeMode selects how like/unlike events move the counter.
type LikeMode int

const (
	// LikeModeDelta adds or removes exactly one like per event. A redelivered or
	// echoed like is counted twice: the events carry no identity to dedupe on.
	// A redelivered unlike can likewise drive the counter below zero.
	LikeModeDelta LikeMode = iota
	// LikeModeAuthoritative sets the counter to the total carried by the event
	// when there is one, which makes redelivery harmless. Events without a
	// total fall back to the delta rule.
	LikeModeAuthoritative
)

var _ contract.EventSink = (*CommentStore)(nil)

// CommentStore is the per-session replica of one post's comments.
// Comments keep their arrival order, replies keep theirs inside each comment.
type CommentStore struct {
	mu       sync.RWMutex
	log      *slog.Logger
	postID   string
	likeMode LikeMode
	comments []comment.Comment
}

func NewCommentStore(log *slog.Logger, postID string, likeMode LikeMode) *CommentStore {
	return &CommentStore{log: log, postID: postID, likeMode: likeMode}
}

func (s *CommentStore) PostID() string { return s.postID }

// Load replaces the whole replica with an authoritative snapshot.
func (s *CommentStore) Load(comments []comment.Comment) {
	cloned := lo.Map(comments, func(c comment.Comment, _ int) comment.Comment {
		c = c.Clone()
		if c.Replies == nil {
			c.Replies = []comment.Reply{}
		}
		return c
	})
	s.mu.Lock()
	s.comments = cloned
	s.mu.Unlock()
	s.log.Debug("Snapshot loaded", "post_id", s.postID, "comments", len(cloned))
}

// Consume applies one event. Events that target something this replica does
// not hold are dropped: nothing is created speculatively and nothing is an error.
func (s *CommentStore) Consume(_ context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch evt := e.(type) {
	case event.CommentCreated:
		s.upsertComment(evt.Comment)
	case event.ReplyCreated:
		s.upsertReply(evt.Reply)
	case event.CommentDeleted:
		s.removeComment(evt.CommentID)
	case event.ReplyDeleted:
		s.removeReply(evt.ReplyID)
	case event.CommentLiked:
		s.like(evt.CommentID, +1, evt.Total)
	case event.CommentUnliked:
		s.like(evt.CommentID, -1, evt.Total)
	}
	return nil
}

// Comments returns a deep copy of the replica in display order.
func (s *CommentStore) Comments() []comment.Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Map(s.comments, func(c comment.Comment, _ int) comment.Comment { return c.Clone() })
}

func (s *CommentStore) Comment(id string) (comment.Comment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	if i < 0 {
		return comment.Comment{}, false
	}
	return s.comments[i].Clone(), true
}

func (s *CommentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.comments)
}

// upsertComment replaces in place or appends. The session's own optimistic
// insert and the hub echo of the same event converge to one entry.
func (s *CommentStore) upsertComment(c comment.Comment) {
	c = c.Clone()
	if c.Replies == nil {
		c.Replies = []comment.Reply{}
	}
	if i := s.indexOf(c.ID); i >= 0 {
		s.comments[i] = c
		return
	}
	s.comments = append(s.comments, c)
}

func (s *CommentStore) upsertReply(r comment.Reply) {
	i := s.indexOf(r.CommentID)
	if i < 0 {
		s.log.Debug("Reply for a comment not loaded, dropped", "reply_id", r.ID, "comment_id", r.CommentID)
		return
	}
	r = r.Clone()
	parent := &s.comments[i]
	if j := parent.ReplyIndex(r.ID); j >= 0 {
		parent.Replies[j] = r
		return
	}
	parent.Replies = append(parent.Replies, r)
}

func (s *CommentStore) removeComment(id string) {
	i := s.indexOf(id)
	if i < 0 {
		return
	}
	s.comments = append(s.comments[:i], s.comments[i+1:]...)
}

// removeReply searches every comment: the event does not have to name the parent.
func (s *CommentStore) removeReply(replyID string) {
	for i := range s.comments {
		parent := &s.comments[i]
		if j := parent.ReplyIndex(replyID); j >= 0 {
			parent.Replies = append(parent.Replies[:j], parent.Replies[j+1:]...)
			return
		}
	}
}

func (s *CommentStore) like(id string, delta int, total *int) {
	i := s.indexOf(id)
	if i < 0 {
		s.log.Debug("Like for a comment not loaded, dropped", "comment_id", id)
		return
	}
	if s.likeMode == LikeModeAuthoritative && total != nil {
		s.comments[i].Likes = *total
		return
	}
	s.comments[i].Likes += delta
}

func (s *CommentStore) indexOf(id string) int {
	for i := range s.comments {
		if s.comments[i].ID == id {
			return i
		}
	}
	return -1
}

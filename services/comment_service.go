package services

import (
	"context"
	"encoding/json"
	"estate-live/contract"
	"estate-live/domain/comment"
	"estate-live/domain/event"
	"estate-live/errors"
	"estate-live/projection"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/samber/lo"
)

type ICommentSession interface {
	Open(ctx context.Context) error
	AddComment(ctx context.Context, text string) (comment.Comment, error)
	EditComment(ctx context.Context, commentID, text string) (comment.Comment, error)
	AddReply(ctx context.Context, commentID, text string) (comment.Reply, error)
	DeleteComment(ctx context.Context, commentID string) error
	DeleteReply(ctx context.Context, replyID, commentID string) error
	ToggleLike(ctx context.Context, commentID string) (bool, error)
	SendMessage(ctx context.Context, receiverID string, data any) error
	Run(ctx context.Context, events <-chan event.DomainEvent) error
	IsLiked(commentID string) bool
	Comments() []comment.Comment
}

// MessageHandler receives the payload of direct messages addressed to this session.
type MessageHandler func(data json.RawMessage)

var _ ICommentSession = (*CommentSession)(nil)

// CommentSession drives one user's view of one post.
// Every write goes to the comment service first. Only on success is the change
// applied locally and published to the hub. A failed write leaves the view untouched
// and publishes nothing.
type CommentSession struct {
	log       *slog.Logger
	api       contract.ICommentAPI
	publisher contract.IPublisher
	store     *projection.CommentStore
	likedRepo contract.ILikedRepository
	user      comment.User
	onMessage MessageHandler

	mu    sync.Mutex
	liked map[string]struct{}
}

func NewCommentSession(
	log *slog.Logger,
	api contract.ICommentAPI,
	publisher contract.IPublisher,
	store *projection.CommentStore,
	likedRepo contract.ILikedRepository,
	user comment.User,
	onMessage MessageHandler,
) *CommentSession {
	return &CommentSession{
		log:       log,
		api:       api,
		publisher: publisher,
		store:     store,
		likedRepo: likedRepo,
		user:      user,
		onMessage: onMessage,
		liked:     make(map[string]struct{}),
	}
}

// Open announces the user to the hub, loads the post's snapshot and the liked set.
func (s *CommentSession) Open(ctx context.Context) error {
	if err := s.publisher.Announce(ctx, s.user.ID); err != nil {
		return fmt.Errorf("announce %s: %w", s.user.ID, err)
	}
	comments, err := s.api.GetComments(ctx, s.store.PostID())
	if err != nil {
		return err
	}
	s.store.Load(comments)

	ids, err := s.likedRepo.Load()
	if err != nil {
		return fmt.Errorf("load liked comments: %w", err)
	}
	s.mu.Lock()
	s.liked = lo.SliceToMap(ids, func(id string) (string, struct{}) { return id, struct{}{} })
	s.mu.Unlock()

	s.log.Info("Session opened", "user_id", s.user.ID, "post_id", s.store.PostID(),
		"comments", len(comments), "liked", len(ids))
	return nil
}

func (s *CommentSession) AddComment(ctx context.Context, text string) (comment.Comment, error) {
	created, err := s.api.CreateComment(ctx, s.store.PostID(), s.user.ID, text)
	if err != nil {
		return comment.Comment{}, err
	}
	created.User = lo.ToPtr(s.user.Snapshot())
	if created.Replies == nil {
		created.Replies = []comment.Reply{}
	}
	s.apply(ctx, event.CommentCreated{Comment: created})
	return created, nil
}

// EditComment rewrites the text of a loaded comment. Peers receive the whole
// comment again and replace their copy by id.
func (s *CommentSession) EditComment(ctx context.Context, commentID, text string) (comment.Comment, error) {
	local, ok := s.store.Comment(commentID)
	if !ok {
		return comment.Comment{}, fmt.Errorf("%w: %s", errors.ErrCommentNotLoaded, commentID)
	}
	if _, err := s.api.UpdateComment(ctx, commentID, text); err != nil {
		return comment.Comment{}, err
	}
	local.Text = text
	s.apply(ctx, event.CommentCreated{Comment: local})
	return local, nil
}

func (s *CommentSession) AddReply(ctx context.Context, commentID, text string) (comment.Reply, error) {
	created, err := s.api.CreateReply(ctx, commentID, s.user.ID, text)
	if err != nil {
		return comment.Reply{}, err
	}
	created.CommentID = commentID
	created.User = lo.ToPtr(s.user.Snapshot())
	s.apply(ctx, event.ReplyCreated{Reply: created})
	return created, nil
}

// DeleteComment refuses to delete a comment that still shows replies in the local view.
func (s *CommentSession) DeleteComment(ctx context.Context, commentID string) error {
	local, ok := s.store.Comment(commentID)
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrCommentNotLoaded, commentID)
	}
	if local.HasReplies() {
		return fmt.Errorf("%w: %s", errors.ErrCommentHasReplies, commentID)
	}
	if err := s.api.DeleteComment(ctx, commentID); err != nil {
		return err
	}
	s.apply(ctx, event.CommentDeleted{CommentID: commentID})
	return nil
}

func (s *CommentSession) DeleteReply(ctx context.Context, replyID, commentID string) error {
	if err := s.api.DeleteReply(ctx, replyID); err != nil {
		return err
	}
	s.apply(ctx, event.ReplyDeleted{ReplyID: replyID, CommentID: commentID})
	return nil
}

// ToggleLike flips the like state of this client and returns the new state.
// The counter is not touched here: it moves when the hub echoes the event back.
func (s *CommentSession) ToggleLike(ctx context.Context, commentID string) (bool, error) {
	if s.IsLiked(commentID) {
		if err := s.api.UnlikeComment(ctx, commentID); err != nil {
			return true, err
		}
		s.setLiked(commentID, false)
		s.publish(ctx, event.CommentUnliked{CommentID: commentID})
		return false, nil
	}

	if err := s.api.LikeComment(ctx, commentID); err != nil {
		return false, err
	}
	s.setLiked(commentID, true)
	s.publish(ctx, event.CommentLiked{CommentID: commentID})
	return true, nil
}

func (s *CommentSession) SendMessage(ctx context.Context, receiverID string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidEvent, err)
	}
	return s.publisher.Publish(ctx, event.DirectMessage{ReceiverID: receiverID, Data: raw})
}

// Run applies hub deliveries to the local view until the stream ends or ctx is cancelled.
func (s *CommentSession) Run(ctx context.Context, events <-chan event.DomainEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				return errors.ErrSessionClosed
			}
			if dm, isDM := evt.(event.DirectMessage); isDM {
				if s.onMessage != nil {
					s.onMessage(dm.Data)
				}
				continue
			}
			if err := s.store.Consume(ctx, evt); err != nil {
				s.log.Warn("Event not applied", "kind", evt.Kind(), "error", err)
			}
		}
	}
}

func (s *CommentSession) IsLiked(commentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.liked[commentID]
	return ok
}

func (s *CommentSession) Comments() []comment.Comment {
	return s.store.Comments()
}

// setLiked follows the CRUD write, which already succeeded: a persistence
// failure only leaves the local copy stale until the next successful save.
func (s *CommentSession) setLiked(commentID string, liked bool) {
	s.mu.Lock()
	if liked {
		s.liked[commentID] = struct{}{}
	} else {
		delete(s.liked, commentID)
	}
	ids := lo.Keys(s.liked)
	s.mu.Unlock()

	sort.Strings(ids)
	if err := s.likedRepo.Save(ids); err != nil {
		s.log.Warn("Liked comments not saved", "comment_id", commentID, "liked", liked, "error", err)
	}
}

// apply runs the optimistic local mutation then publishes the same event.
// The hub echoes it back and the store absorbs the duplicate.
func (s *CommentSession) apply(ctx context.Context, evt event.DomainEvent) {
	if err := s.store.Consume(ctx, evt); err != nil {
		s.log.Warn("Optimistic update not applied", "kind", evt.Kind(), "error", err)
	}
	s.publish(ctx, evt)
}

// publish is fire-and-forget: the write is already persisted and peers
// catch up on their next snapshot.
func (s *CommentSession) publish(ctx context.Context, evt event.DomainEvent) {
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.Warn("Event not published", "kind", evt.Kind(), "error", err)
	}
}

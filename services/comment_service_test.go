package services

import (
	"context"
	"encoding/json"
	"estate-live/domain/comment"
	"estate-live/domain/event"
	"estate-live/errors"
	"estate-live/mocks"
	"estate-live/projection"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type sessionFixture struct {
	api       *mocks.MockICommentAPI
	publisher *mocks.MockIPublisher
	liked     *mocks.MockILikedRepository
	store     *projection.CommentStore
	session   *CommentSession
	messages  []json.RawMessage
}

func newSession(t *testing.T, user comment.User) *sessionFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	f := &sessionFixture{
		api:       mocks.NewMockICommentAPI(ctrl),
		publisher: mocks.NewMockIPublisher(ctrl),
		liked:     mocks.NewMockILikedRepository(ctrl),
		store:     projection.NewCommentStore(log, "post-1", projection.LikeModeDelta),
	}
	f.session = NewCommentSession(log, f.api, f.publisher, f.store, f.liked, user,
		func(data json.RawMessage) { f.messages = append(f.messages, data) })
	return f
}

func (f *sessionFixture) open(t *testing.T, comments []comment.Comment, liked []string) {
	t.Helper()
	f.publisher.EXPECT().Announce(gomock.Any(), gomock.Any()).Return(nil)
	f.api.EXPECT().GetComments(gomock.Any(), "post-1").Return(comments, nil)
	f.liked.EXPECT().Load().Return(liked, nil)
	require.NoError(t, f.session.Open(context.Background()))
}

func TestCommentSession_Open_Loads_Snapshot_And_Liked_Set(t *testing.T) {
	req := require.New(t)
	f := newSession(t, comment.User{ID: "alice"})

	f.publisher.EXPECT().Announce(gomock.Any(), "alice").Return(nil)
	f.api.EXPECT().GetComments(gomock.Any(), "post-1").Return([]comment.Comment{{ID: "55", Likes: 3}}, nil)
	f.liked.EXPECT().Load().Return([]string{"55"}, nil)

	req.NoError(f.session.Open(context.Background()))

	req.Len(f.session.Comments(), 1)
	req.True(f.session.IsLiked("55"))
	req.False(f.session.IsLiked("56"))
}

func TestCommentSession_Open_Fails_When_Snapshot_Fails(t *testing.T) {
	req := require.New(t)
	f := newSession(t, comment.User{ID: "alice"})
	f.publisher.EXPECT().Announce(gomock.Any(), "alice").Return(nil)
	f.api.EXPECT().GetComments(gomock.Any(), "post-1").Return(nil, errors.ErrCrudFailure)

	err := f.session.Open(context.Background())

	req.ErrorIs(err, errors.ErrCrudFailure)
	req.Empty(f.session.Comments())
}

// Scenario: the optimistic insert and the echo of id=101 "hi" end as one comment.
func TestCommentSession_AddComment_Then_Echo_Keeps_One(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newSession(t, comment.User{ID: "alice", Username: "alice"})
	f.open(t, nil, nil)

	created := comment.Comment{ID: "101", PostID: "post-1", UserID: "alice", Text: "hi", CreatedAt: time.Now()}
	f.api.EXPECT().CreateComment(gomock.Any(), "post-1", "alice", "hi").Return(created, nil)

	var published event.DomainEvent
	f.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, evt event.DomainEvent) error {
			published = evt
			return nil
		})

	// When alice comments
	got, err := f.session.AddComment(ctx, "hi")
	req.NoError(err)

	// Then the comment carries her snapshot and was published
	req.Equal("alice", got.User.Username)
	req.Equal(comment.DefaultAvatar, got.User.Avatar)
	req.NotNil(got.Replies)
	req.Equal(event.CommentCreated{Comment: got}, published)
	req.Len(f.session.Comments(), 1)

	// And the hub echo does not duplicate it
	events := make(chan event.DomainEvent, 1)
	events <- published
	close(events)
	req.ErrorIs(f.session.Run(ctx, events), errors.ErrSessionClosed)
	req.Len(f.session.Comments(), 1)
}

func TestCommentSession_Crud_Failure_Changes_Nothing(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newSession(t, comment.User{ID: "alice"})
	f.open(t, []comment.Comment{{ID: "1"}}, nil)
	failure := fmt.Errorf("%w: POST /comments/post-1: status 500", errors.ErrCrudFailure)

	f.api.EXPECT().CreateComment(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(comment.Comment{}, failure)
	f.api.EXPECT().CreateReply(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(comment.Reply{}, failure)
	f.api.EXPECT().DeleteComment(gomock.Any(), "1").Return(failure)
	f.api.EXPECT().LikeComment(gomock.Any(), "1").Return(failure)
	// No Publish expectation: any publish fails the test

	_, err := f.session.AddComment(ctx, "hi")
	req.ErrorIs(err, errors.ErrCrudFailure)
	_, err = f.session.AddReply(ctx, "1", "hello")
	req.ErrorIs(err, errors.ErrCrudFailure)
	req.ErrorIs(f.session.DeleteComment(ctx, "1"), errors.ErrCrudFailure)
	_, err = f.session.ToggleLike(ctx, "1")
	req.ErrorIs(err, errors.ErrCrudFailure)

	req.Equal([]comment.Comment{{ID: "1", Replies: []comment.Reply{}}}, f.session.Comments())
	req.False(f.session.IsLiked("1"))
}

func TestCommentSession_AddReply_Attaches_Parent_And_Snapshot(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newSession(t, comment.User{ID: "bob", Username: "bob", Avatar: "/bob.jpg"})
	f.open(t, []comment.Comment{{ID: "1"}}, nil)

	f.api.EXPECT().CreateReply(gomock.Any(), "1", "bob", "same question").
		Return(comment.Reply{ID: "10", UserID: "bob", Text: "same question"}, nil)
	f.publisher.EXPECT().Publish(gomock.Any(), gomock.AssignableToTypeOf(event.ReplyCreated{})).Return(nil)

	reply, err := f.session.AddReply(ctx, "1", "same question")

	req.NoError(err)
	req.Equal("1", reply.CommentID)
	req.Equal(&comment.UserSnapshot{Username: "bob", Avatar: "/bob.jpg"}, reply.User)
	c, _ := f.store.Comment("1")
	req.Len(c.Replies, 1)
}

func TestCommentSession_DeleteComment_Refuses_When_Replies(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newSession(t, comment.User{ID: "alice"})
	f.open(t, []comment.Comment{
		{ID: "1", Replies: []comment.Reply{{ID: "9", CommentID: "1"}}},
		{ID: "2"},
	}, nil)

	// Refused locally, the service is never called
	req.ErrorIs(f.session.DeleteComment(ctx, "1"), errors.ErrCommentHasReplies)
	req.ErrorIs(f.session.DeleteComment(ctx, "404"), errors.ErrCommentNotLoaded)

	f.api.EXPECT().DeleteComment(gomock.Any(), "2").Return(nil)
	f.publisher.EXPECT().Publish(gomock.Any(), event.CommentDeleted{CommentID: "2"}).Return(nil)
	req.NoError(f.session.DeleteComment(ctx, "2"))
	req.Len(f.session.Comments(), 1)
}

func TestCommentSession_DeleteReply(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newSession(t, comment.User{ID: "alice"})
	f.open(t, []comment.Comment{{ID: "1", Replies: []comment.Reply{{ID: "9", CommentID: "1"}}}}, nil)

	f.api.EXPECT().DeleteReply(gomock.Any(), "9").Return(nil)
	f.publisher.EXPECT().Publish(gomock.Any(), event.ReplyDeleted{ReplyID: "9", CommentID: "1"}).Return(nil)

	req.NoError(f.session.DeleteReply(ctx, "9", "1"))
	c, _ := f.store.Comment("1")
	req.Empty(c.Replies)
}

func TestCommentSession_EditComment_Keeps_Replies(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newSession(t, comment.User{ID: "alice"})
	f.open(t, []comment.Comment{{ID: "1", Text: "old", Replies: []comment.Reply{{ID: "9", CommentID: "1"}}}}, nil)

	f.api.EXPECT().UpdateComment(gomock.Any(), "1", "new").Return(comment.Comment{ID: "1", Text: "new"}, nil)
	f.publisher.EXPECT().Publish(gomock.Any(), gomock.AssignableToTypeOf(event.CommentCreated{})).Return(nil)

	edited, err := f.session.EditComment(ctx, "1", "new")

	req.NoError(err)
	req.Equal("new", edited.Text)
	req.Len(edited.Replies, 1)
	c, _ := f.store.Comment("1")
	req.Equal("new", c.Text)
	req.Len(c.Replies, 1)
}

func TestCommentSession_ToggleLike_Does_Not_Touch_Counter(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newSession(t, comment.User{ID: "alice"})
	f.open(t, []comment.Comment{{ID: "55", Likes: 4}}, []string{"12"})

	// When alice likes 55
	f.api.EXPECT().LikeComment(gomock.Any(), "55").Return(nil)
	f.liked.EXPECT().Save([]string{"12", "55"}).Return(nil)
	f.publisher.EXPECT().Publish(gomock.Any(), event.CommentLiked{CommentID: "55"}).Return(nil)

	liked, err := f.session.ToggleLike(ctx, "55")
	req.NoError(err)
	req.True(liked)
	req.True(f.session.IsLiked("55"))

	// Then the counter waits for the echo
	c, _ := f.store.Comment("55")
	req.Equal(4, c.Likes)

	// When she toggles again
	f.api.EXPECT().UnlikeComment(gomock.Any(), "55").Return(nil)
	f.liked.EXPECT().Save([]string{"12"}).Return(nil)
	f.publisher.EXPECT().Publish(gomock.Any(), event.CommentUnliked{CommentID: "55"}).Return(nil)

	liked, err = f.session.ToggleLike(ctx, "55")
	req.NoError(err)
	req.False(liked)
	req.False(f.session.IsLiked("55"))
}

// Scenario: A likes 55, B receives the broadcast. B's counter moves, B's own
// liked set does not.
func TestCommentSession_Peer_Like_Moves_Counter_Only(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	b := newSession(t, comment.User{ID: "bob"})
	b.open(t, []comment.Comment{{ID: "55", Likes: 4}}, nil)

	events := make(chan event.DomainEvent, 1)
	events <- event.CommentLiked{CommentID: "55"}
	close(events)
	req.ErrorIs(b.session.Run(ctx, events), errors.ErrSessionClosed)

	c, _ := b.store.Comment("55")
	req.Equal(5, c.Likes)
	req.False(b.session.IsLiked("55"))
}

func TestCommentSession_Publish_Failure_Is_Not_Fatal(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newSession(t, comment.User{ID: "alice"})
	f.open(t, nil, nil)

	f.api.EXPECT().CreateComment(gomock.Any(), "post-1", "alice", "hi").Return(comment.Comment{ID: "101", Text: "hi"}, nil)
	f.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.ErrConnectionClosed)

	_, err := f.session.AddComment(ctx, "hi")

	req.NoError(err)
	req.Len(f.session.Comments(), 1)
}

func TestCommentSession_ToggleLike_Publishes_Even_When_Liked_Set_Not_Saved(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newSession(t, comment.User{ID: "alice"})
	f.open(t, []comment.Comment{{ID: "55", Likes: 4}}, nil)

	// Given a like accepted by the comment service but a failing local database
	f.api.EXPECT().LikeComment(gomock.Any(), "55").Return(nil).Times(1)
	f.liked.EXPECT().Save([]string{"55"}).Return(fmt.Errorf("disk full"))
	f.publisher.EXPECT().Publish(gomock.Any(), event.CommentLiked{CommentID: "55"}).Return(nil).Times(1)

	// When alice likes 55
	liked, err := f.session.ToggleLike(ctx, "55")

	// Then the like still reaches the hub and the toggle is reported done
	req.NoError(err)
	req.True(liked)
	req.True(f.session.IsLiked("55"))

	// And the echo moves the counter once
	events := make(chan event.DomainEvent, 1)
	events <- event.CommentLiked{CommentID: "55"}
	close(events)
	req.ErrorIs(f.session.Run(ctx, events), errors.ErrSessionClosed)
	c, _ := f.store.Comment("55")
	req.Equal(5, c.Likes)
}

func TestCommentSession_Direct_Messages(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newSession(t, comment.User{ID: "alice"})
	f.open(t, []comment.Comment{{ID: "1"}}, nil)

	// Sending wraps the payload for the receiver
	f.publisher.EXPECT().Publish(gomock.Any(), event.DirectMessage{
		ReceiverID: "bob",
		Data:       json.RawMessage(`{"text":"hello"}`),
	}).Return(nil)
	req.NoError(f.session.SendMessage(ctx, "bob", map[string]string{"text": "hello"}))

	// Receiving goes to the handler, never to the store
	events := make(chan event.DomainEvent, 1)
	events <- event.DirectMessage{Data: json.RawMessage(`"hi alice"`)}
	close(events)
	req.ErrorIs(f.session.Run(ctx, events), errors.ErrSessionClosed)

	req.Equal([]json.RawMessage{json.RawMessage(`"hi alice"`)}, f.messages)
	req.Len(f.session.Comments(), 1)
}

func TestCommentSession_Run_Stops_On_Cancel(t *testing.T) {
	req := require.New(t)
	f := newSession(t, comment.User{ID: "alice"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.session.Run(ctx, make(chan event.DomainEvent))

	req.ErrorIs(err, context.Canceled)
}

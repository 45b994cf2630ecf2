package projection

import (
	"context"
	"estate-live/domain/comment"
	"estate-live/domain/event"
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func newStore(mode LikeMode, comments ...comment.Comment) *CommentStore {
	store := NewCommentStore(logs.GetLoggerFromLevel(slog.LevelDebug), "post-1", mode)
	store.Load(comments)
	return store
}

func apply(t *testing.T, store *CommentStore, events ...event.DomainEvent) {
	t.Helper()
	for _, evt := range events {
		require.NoError(t, store.Consume(context.Background(), evt))
	}
}

func ids(comments []comment.Comment) []string {
	return lo.Map(comments, func(c comment.Comment, _ int) string { return c.ID })
}

func replyIDs(c comment.Comment) []string {
	return lo.Map(c.Replies, func(r comment.Reply, _ int) string { return r.ID })
}

func TestCommentStore_Load_Replaces_State(t *testing.T) {
	req := require.New(t)
	store := newStore(LikeModeDelta, comment.Comment{ID: "1"}, comment.Comment{ID: "2"})

	store.Load([]comment.Comment{{ID: "3"}})

	req.Equal([]string{"3"}, ids(store.Comments()))
	c, ok := store.Comment("3")
	req.True(ok)
	req.NotNil(c.Replies)
}

func TestCommentStore_Load_Deep_Copies_Snapshot(t *testing.T) {
	req := require.New(t)
	snapshot := []comment.Comment{{ID: "1", Replies: []comment.Reply{{ID: "9", CommentID: "1", Text: "original"}}}}
	store := newStore(LikeModeDelta, snapshot...)

	snapshot[0].Replies[0].Text = "mutated"
	read := store.Comments()
	read[0].Replies[0].Text = "mutated too"

	c, _ := store.Comment("1")
	req.Equal("original", c.Replies[0].Text)
}

// Scenario: optimistic insert then the hub echo of the same comment.
func TestCommentStore_CommentCreated_Twice_Keeps_One(t *testing.T) {
	req := require.New(t)
	store := newStore(LikeModeDelta)
	created := event.CommentCreated{Comment: comment.Comment{ID: "101", Text: "hi"}}

	apply(t, store, created, created)

	req.Equal(1, store.Len())
	c, _ := store.Comment("101")
	req.Equal("hi", c.Text)
}

func TestCommentStore_CommentCreated_Replaces_In_Place(t *testing.T) {
	req := require.New(t)
	store := newStore(LikeModeDelta, comment.Comment{ID: "1"}, comment.Comment{ID: "2", Text: "old"}, comment.Comment{ID: "3"})

	apply(t, store, event.CommentCreated{Comment: comment.Comment{ID: "2", Text: "new"}})

	req.Equal([]string{"1", "2", "3"}, ids(store.Comments()))
	c, _ := store.Comment("2")
	req.Equal("new", c.Text)
}

func TestCommentStore_Deletes_On_Absent_Ids_Are_Noops(t *testing.T) {
	req := require.New(t)
	store := newStore(LikeModeDelta, comment.Comment{ID: "1", Replies: []comment.Reply{{ID: "9", CommentID: "1"}}})

	apply(t, store,
		event.CommentDeleted{CommentID: "404"},
		event.ReplyDeleted{ReplyID: "404"},
	)

	req.Equal([]string{"1"}, ids(store.Comments()))
	c, _ := store.Comment("1")
	req.Equal([]string{"9"}, replyIDs(c))
}

func TestCommentStore_CommentDeleted_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	store := newStore(LikeModeDelta, comment.Comment{ID: "1"}, comment.Comment{ID: "2"})

	apply(t, store, event.CommentDeleted{CommentID: "1"}, event.CommentDeleted{CommentID: "1"})

	req.Equal([]string{"2"}, ids(store.Comments()))
}

func TestCommentStore_ReplyCreated(t *testing.T) {
	req := require.New(t)
	store := newStore(LikeModeDelta, comment.Comment{ID: "1"})
	reply := event.ReplyCreated{Reply: comment.Reply{ID: "9", CommentID: "1", Text: "same here"}}

	// When the same reply arrives twice and one targets a comment not loaded
	apply(t, store,
		reply,
		reply,
		event.ReplyCreated{Reply: comment.Reply{ID: "10", CommentID: "404"}},
	)

	// Then the known parent holds it once and nothing was created for the unknown one
	req.Equal(1, store.Len())
	c, _ := store.Comment("1")
	req.Equal([]string{"9"}, replyIDs(c))
}

func TestCommentStore_Like_Delta_Is_Not_Idempotent(t *testing.T) {
	req := require.New(t)
	store := newStore(LikeModeDelta, comment.Comment{ID: "55", Likes: 4})

	for i := 0; i < 3; i++ {
		apply(t, store, event.CommentLiked{CommentID: "55"})
	}
	c, _ := store.Comment("55")
	req.Equal(7, c.Likes)

	apply(t, store, event.CommentUnliked{CommentID: "55"})
	c, _ = store.Comment("55")
	req.Equal(6, c.Likes)
}

func TestCommentStore_Unlike_Delta_Can_Go_Below_Zero(t *testing.T) {
	req := require.New(t)
	store := newStore(LikeModeDelta, comment.Comment{ID: "55", Likes: 0})

	// A redelivered unlike is applied as is, the counter is not clamped
	apply(t, store, event.CommentUnliked{CommentID: "55"})

	c, _ := store.Comment("55")
	req.Equal(-1, c.Likes)
}

func TestCommentStore_Like_On_Absent_Comment_Is_Dropped(t *testing.T) {
	req := require.New(t)
	store := newStore(LikeModeDelta, comment.Comment{ID: "1", Likes: 2})

	apply(t, store, event.CommentLiked{CommentID: "404"}, event.CommentUnliked{CommentID: "404"})

	req.Equal(1, store.Len())
	c, _ := store.Comment("1")
	req.Equal(2, c.Likes)
}

func TestCommentStore_Like_Authoritative_Total(t *testing.T) {
	req := require.New(t)
	store := newStore(LikeModeAuthoritative, comment.Comment{ID: "55", Likes: 4})
	total := 5
	liked := event.CommentLiked{CommentID: "55", Total: &total}

	// When the same like is delivered twice
	apply(t, store, liked, liked)

	// Then the counter is the carried total
	c, _ := store.Comment("55")
	req.Equal(5, c.Likes)

	// And events without a total fall back to the delta
	apply(t, store, event.CommentUnliked{CommentID: "55"})
	c, _ = store.Comment("55")
	req.Equal(4, c.Likes)
}

func TestCommentStore_Ignores_Direct_Messages(t *testing.T) {
	req := require.New(t)
	store := newStore(LikeModeDelta, comment.Comment{ID: "1"})

	apply(t, store, event.DirectMessage{ReceiverID: "bob"})

	req.Equal([]string{"1"}, ids(store.Comments()))
}

// Scenario: reply 9 is deleted on one client while reply 10 is created on
// another. Whatever the arrival order, 10 is present and 9 is gone.
func TestCommentStore_Concurrent_Reply_Delete_And_Create_Converge(t *testing.T) {
	deleted := event.ReplyDeleted{ReplyID: "9", CommentID: "1"}
	created := event.ReplyCreated{Reply: comment.Reply{ID: "10", CommentID: "1", Text: "still for sale?"}}

	tests := []struct {
		description string
		events      []event.DomainEvent
	}{
		{"Delete then create", []event.DomainEvent{deleted, created}},
		{"Create then delete", []event.DomainEvent{created, deleted}},
		{"Redelivered", []event.DomainEvent{created, deleted, deleted, created}},
	}
	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			req := require.New(t)
			store := newStore(LikeModeDelta, comment.Comment{
				ID:      "1",
				Replies: []comment.Reply{{ID: "9", CommentID: "1"}},
			})

			apply(t, store, tt.events...)

			c, _ := store.Comment("1")
			req.Equal([]string{"10"}, replyIDs(c))
		})
	}
}

package ws

import (
	"context"
	"encoding/json"
	"estate-live/domain/comment"
	"estate-live/domain/event"
	"estate-live/errors"
	"estate-live/observability"
	"estate-live/runtime"
	"estate-live/runtime/workers"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*runtime.Hub, string) {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	hub := runtime.NewHub(log, runtime.NewRegistry(runtime.KeepOldest), observability.NewMetrics("test"), 64)

	ctx, cancel := context.WithCancel(context.Background())
	sup := workers.NewSupervisor(log, 10*time.Millisecond)
	go sup.Add(workers.NewDispatchWorker(hub.Inbound(), hub, log)).Run(ctx)

	server := httptest.NewServer(NewServer(log, hub, ServerConfig{}))
	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, url string) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := Dial(ctx, logs.GetLoggerFromLevel(slog.LevelDebug), url, ClientConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func next(t *testing.T, c *Client) event.DomainEvent {
	t.Helper()
	select {
	case evt, ok := <-c.Events():
		require.True(t, ok, "event stream closed")
		return evt
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no event received")
		return nil
	}
}

func TestServer_Broadcast_And_Unicast_Over_Websocket(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	hub, url := startHub(t)

	// Given two connected and announced clients
	alice, bob := dial(t, url), dial(t, url)
	req.NoError(alice.Announce(ctx, "alice"))
	req.NoError(bob.Announce(ctx, "bob"))
	req.Eventually(func() bool { return hub.Registry().Len() == 2 }, 2*time.Second, 10*time.Millisecond)

	// When alice publishes a comment
	created := event.CommentCreated{Comment: comment.Comment{ID: "101", Text: "hi", Replies: []comment.Reply{}}}
	req.NoError(alice.Publish(ctx, created))

	// Then both receive it, alice included
	for _, c := range []*Client{alice, bob} {
		evt := next(t, c)
		got, ok := evt.(event.CommentCreated)
		req.True(ok)
		req.Equal("101", got.Comment.ID)
		req.Equal("hi", got.Comment.Text)
	}

	// When alice sends bob a direct message
	req.NoError(alice.Publish(ctx, event.DirectMessage{ReceiverID: "bob", Data: json.RawMessage(`"visit at 5?"`)}))

	// Then only bob gets the payload
	req.Equal(event.DirectMessage{Data: json.RawMessage(`"visit at 5?"`)}, next(t, bob))
	select {
	case evt := <-alice.Events():
		req.Failf("unexpected delivery", "%v", evt)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestServer_Disconnect_Unregisters_User(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	hub, url := startHub(t)

	alice := dial(t, url)
	req.NoError(alice.Announce(ctx, "alice"))
	req.Eventually(func() bool { return hub.Registry().Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	req.NoError(alice.Close())

	req.Eventually(func() bool {
		return hub.Registry().Len() == 0 && hub.Connections() == 0
	}, 2*time.Second, 10*time.Millisecond)

	err := alice.Publish(ctx, event.CommentDeleted{CommentID: "1"})
	req.ErrorIs(err, errors.ErrConnectionClosed)
}

func TestServer_Ignores_Malformed_Frames(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	hub, url := startHub(t)

	alice := dial(t, url)
	req.NoError(alice.write(ctx, []byte(`not json`)))
	req.NoError(alice.write(ctx, []byte(`{"event":"commentDeleted","data":{}}`)))
	req.NoError(alice.Publish(ctx, event.CommentDeleted{CommentID: "1"}))

	// Only the valid event comes back
	req.Equal(event.CommentDeleted{CommentID: "1"}, next(t, alice))
	req.Equal(1, hub.Connections())
}

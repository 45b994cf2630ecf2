package e2e

import (
	"context"
	"encoding/json"
	"estate-live/domain/comment"
	"estate-live/infrastructure/crud"
	"estate-live/infrastructure/ws"
	"estate-live/observability"
	"estate-live/projection"
	"estate-live/repositories"
	"estate-live/runtime"
	"estate-live/runtime/workers"
	"estate-live/services"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

type BaseSuite struct {
	suite.Suite
	Config Config
	Stub   *crud.Stub
	Log    *slog.Logger

	cancel  context.CancelFunc
	servers []*httptest.Server
}

// Participant is one connected user with its own session, transport and database.
type Participant struct {
	User     comment.User
	Session  *services.CommentSession
	Client   *ws.Client
	Messages chan json.RawMessage
}

// SetupSuite loads the environment configuration and starts whatever is not
// provided by it.
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	s.Log = logs.GetLoggerFromLevel(slog.LevelDebug)

	var ctx context.Context
	ctx, s.cancel = context.WithCancel(context.Background())

	if s.Config.CrudURL == "" {
		s.Stub = crud.NewStub(s.Log,
			comment.User{ID: "alice", Username: "alice", Avatar: "/avatars/alice.jpg"},
			comment.User{ID: "bob", Username: "bob"},
		)
		server := httptest.NewServer(s.Stub.Router())
		s.servers = append(s.servers, server)
		s.Config.CrudURL = server.URL
	}

	if s.Config.HubURL == "" {
		hub := runtime.NewHub(s.Log, runtime.NewRegistry(runtime.KeepOldest), observability.NewMetrics("e2e"), 256)
		sup := workers.NewSupervisor(s.Log, 50*time.Millisecond)
		go sup.Add(workers.NewDispatchWorker(hub.Inbound(), hub, s.Log)).Run(ctx)

		server := httptest.NewServer(ws.NewServer(s.Log, hub, ws.ServerConfig{}))
		s.servers = append(s.servers, server)
		s.Config.HubURL = "ws" + strings.TrimPrefix(server.URL, "http")
	}
	s.Config.PostID = fmt.Sprintf("%s-%s", s.Config.PostID, uuid.NewString()[:8])
}

func (s *BaseSuite) TearDownSuite() {
	for _, server := range s.servers {
		server.Close()
	}
	if s.cancel != nil {
		s.cancel()
	}
}

// Step prints a colorized header for a scenario step.
func (s *BaseSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Join connects a user to the hub and opens its session on the suite post.
func (s *BaseSuite) Join(user comment.User) *Participant {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := ws.Dial(ctx, s.Log, s.Config.HubURL, ws.ClientConfig{})
	s.Require().NoError(err, "Failed to connect to hub at "+s.Config.HubURL)

	db, err := badger.Open(badger.DefaultOptions(s.T().TempDir()).WithLoggingLevel(badger.ERROR))
	s.Require().NoError(err)

	p := &Participant{User: user, Client: client, Messages: make(chan json.RawMessage, 16)}
	p.Session = services.NewCommentSession(
		s.Log,
		crud.NewClient(s.Log, crud.DefaultConfig(s.Config.CrudURL)),
		client,
		projection.NewCommentStore(s.Log, s.Config.PostID, projection.LikeModeDelta),
		repositories.NewLikedRepository(db, s.Log, user.ID),
		user,
		func(data json.RawMessage) { p.Messages <- data },
	)
	s.Require().NoError(p.Session.Open(ctx))

	runCtx, stop := context.WithCancel(context.Background())
	go func() { _ = p.Session.Run(runCtx, client.Events()) }()

	s.T().Cleanup(func() {
		stop()
		_ = client.Close()
		_ = db.Close()
	})
	return p
}

// Find returns the comment with the given id in the participant's view.
func (p *Participant) Find(id string) (comment.Comment, bool) {
	for _, c := range p.Session.Comments() {
		if c.ID == id {
			return c, true
		}
	}
	return comment.Comment{}, false
}

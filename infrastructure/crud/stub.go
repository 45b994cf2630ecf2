package crud

import (
	"encoding/json"
	"estate-live/domain/comment"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"github.com/samber/lo"
)

// Stub is an in-memory stand-in for the comment service, used by the local
// binaries and the tests. It answers the same routes with the same status codes.
type Stub struct {
	mu       sync.Mutex
	log      *slog.Logger
	validate *validator.Validate
	users    map[string]comment.User
	comments map[string]*comment.Comment
	order    []string
	replyOf  map[string]string
	failing  bool
	now      func() time.Time
}

func NewStub(log *slog.Logger, users ...comment.User) *Stub {
	s := &Stub{
		log:      log,
		validate: validator.New(),
		users:    lo.KeyBy(users, func(u comment.User) string { return u.ID }),
		comments: make(map[string]*comment.Comment),
		replyOf:  make(map[string]string),
		now:      func() time.Time { return time.Now().UTC() },
	}
	return s
}

// SetFailing makes every route answer 500 until switched back.
func (s *Stub) SetFailing(failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = failing
}

// Likes returns the persisted counter of a comment.
func (s *Stub) Likes(commentID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[commentID]
	if !ok {
		return 0, false
	}
	return c.Likes, true
}

// Router mounts the comment routes under /comments.
func (s *Stub) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(s.failure)

	r.Route("/comments", func(r chi.Router) {
		r.Get("/{postID}", s.getComments)
		r.Post("/{postID}", s.addComment)
		r.Put("/{commentID}", s.updateComment)
		r.Delete("/{commentID}", s.deleteComment)
		r.Post("/{commentID}/replies", s.addReply)
		r.Delete("/replies/{replyID}", s.deleteReply)
		r.Post("/{commentID}/like", s.like(1))
		r.Delete("/{commentID}/unlike", s.like(-1))
	})
	return r
}

type writeRequest struct {
	Text   string `json:"text" validate:"required"`
	UserID string `json:"userId" validate:"required"`
}

type updateRequest struct {
	Text string `json:"text" validate:"required"`
}

func (s *Stub) failure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		failing := s.failing
		s.mu.Unlock()
		if failing {
			writeError(w, http.StatusInternalServerError, "service unavailable")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Stub) getComments(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "postID")
	s.mu.Lock()
	comments := lo.FilterMap(s.order, func(id string, _ int) (comment.Comment, bool) {
		c := s.comments[id]
		return c.Clone(), c.PostID == postID
	})
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, comments)
}

func (s *Stub) addComment(w http.ResponseWriter, r *http.Request) {
	var req writeRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	c := &comment.Comment{
		ID:        ulid.Make().String(),
		PostID:    chi.URLParam(r, "postID"),
		UserID:    req.UserID,
		Text:      req.Text,
		CreatedAt: s.now(),
		Replies:   []comment.Reply{},
		User:      s.snapshot(req.UserID),
	}
	s.comments[c.ID] = c
	s.order = append(s.order, c.ID)
	created := c.Clone()
	s.mu.Unlock()

	s.log.Debug("Comment created", "comment_id", created.ID, "post_id", created.PostID)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Stub) updateComment(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	c, ok := s.comments[chi.URLParam(r, "commentID")]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusInternalServerError, "Error updating comment")
		return
	}
	c.Text = req.Text
	updated := c.Clone()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, updated)
}

func (s *Stub) deleteComment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "commentID")
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	// Replies reference their comment, the delete fails like a foreign key would.
	if !ok || c.HasReplies() {
		writeError(w, http.StatusInternalServerError, "Error deleting comment")
		return
	}
	delete(s.comments, id)
	s.order = lo.Without(s.order, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Stub) addReply(w http.ResponseWriter, r *http.Request) {
	var req writeRequest
	if !s.decode(w, r, &req) {
		return
	}
	commentID := chi.URLParam(r, "commentID")
	s.mu.Lock()
	c, ok := s.comments[commentID]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusInternalServerError, "Error adding reply")
		return
	}
	reply := comment.Reply{
		ID:        ulid.Make().String(),
		CommentID: commentID,
		UserID:    req.UserID,
		Text:      req.Text,
		CreatedAt: s.now(),
		User:      s.snapshot(req.UserID),
	}
	c.Replies = append(c.Replies, reply)
	s.replyOf[reply.ID] = commentID
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, reply)
}

func (s *Stub) deleteReply(w http.ResponseWriter, r *http.Request) {
	replyID := chi.URLParam(r, "replyID")
	s.mu.Lock()
	defer s.mu.Unlock()
	commentID, ok := s.replyOf[replyID]
	if !ok {
		writeError(w, http.StatusInternalServerError, "Error deleting reply")
		return
	}
	if c, ok := s.comments[commentID]; ok {
		c.Replies = lo.Reject(c.Replies, func(reply comment.Reply, _ int) bool { return reply.ID == replyID })
	}
	delete(s.replyOf, replyID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Stub) like(delta int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		c, ok := s.comments[chi.URLParam(r, "commentID")]
		if !ok {
			writeError(w, http.StatusInternalServerError, "Error liking comment")
			return
		}
		c.Likes += delta
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Stub) snapshot(userID string) *comment.UserSnapshot {
	u, ok := s.users[userID]
	if !ok {
		u = comment.User{ID: userID}
	}
	return lo.ToPtr(u.Snapshot())
}

func (s *Stub) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

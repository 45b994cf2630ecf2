// Package crud talks to the external comment service of the listing site.
// The service owns comments and replies; this package only moves them over HTTP.
package crud

import (
	"bytes"
	"context"
	"encoding/json"
	"estate-live/contract"
	"estate-live/domain/comment"
	"estate-live/errors"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

var _ contract.ICommentAPI = (*Client)(nil)

// Config holds the CRUD client settings.
type Config struct {
	BaseURL          string        `validate:"required,url"`
	Timeout          time.Duration `validate:"gte=0"`
	BreakerName      string
	MaxRequests      uint32
	Interval         time.Duration
	OpenTimeout      time.Duration
	FailureThreshold float64 `validate:"gte=0,lte=1"`
	MinRequests      uint32
}

// DefaultConfig returns a breaker that opens once most recent calls failed.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:          baseURL,
		Timeout:          10 * time.Second,
		BreakerName:      "comment-service",
		MaxRequests:      5,
		Interval:         30 * time.Second,
		OpenTimeout:      60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// Client implements contract.ICommentAPI over the REST routes of the comment service.
// Every failure, whatever its cause, is surfaced as errors.ErrCrudFailure.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	log     *slog.Logger
}

func NewClient(log *slog.Logger, conf Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(conf.BaseURL, "/"),
		http:    &http.Client{Timeout: conf.Timeout},
		log:     log,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        conf.BreakerName,
			MaxRequests: conf.MaxRequests,
			Interval:    conf.Interval,
			Timeout:     conf.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.Requests < conf.MinRequests {
					return false
				}
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return failureRatio >= conf.FailureThreshold
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				log.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			},
			IsSuccessful: func(err error) bool {
				// A refused request says nothing about the health of the service.
				var se statusError
				if stderrors.As(err, &se) {
					return se.code < http.StatusInternalServerError
				}
				return err == nil
			},
		}),
	}
}

type statusError struct {
	code int
	body string
}

func (e statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.code, e.body)
}

type textBody struct {
	Text   string `json:"text"`
	UserID string `json:"userId,omitempty"`
}

func (c *Client) GetComments(ctx context.Context, postID string) ([]comment.Comment, error) {
	var comments []comment.Comment
	if err := c.do(ctx, http.MethodGet, path("comments", postID), nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

func (c *Client) CreateComment(ctx context.Context, postID, userID, text string) (comment.Comment, error) {
	var created comment.Comment
	err := c.do(ctx, http.MethodPost, path("comments", postID), textBody{Text: text, UserID: userID}, &created)
	return created, err
}

func (c *Client) UpdateComment(ctx context.Context, commentID, text string) (comment.Comment, error) {
	var updated comment.Comment
	err := c.do(ctx, http.MethodPut, path("comments", commentID), textBody{Text: text}, &updated)
	return updated, err
}

func (c *Client) DeleteComment(ctx context.Context, commentID string) error {
	return c.do(ctx, http.MethodDelete, path("comments", commentID), nil, nil)
}

func (c *Client) CreateReply(ctx context.Context, commentID, userID, text string) (comment.Reply, error) {
	var created comment.Reply
	err := c.do(ctx, http.MethodPost, path("comments", commentID, "replies"), textBody{Text: text, UserID: userID}, &created)
	return created, err
}

func (c *Client) DeleteReply(ctx context.Context, replyID string) error {
	return c.do(ctx, http.MethodDelete, path("comments", "replies", replyID), nil, nil)
}

func (c *Client) LikeComment(ctx context.Context, commentID string) error {
	return c.do(ctx, http.MethodPost, path("comments", commentID, "like"), nil, nil)
}

func (c *Client) UnlikeComment(ctx context.Context, commentID string) error {
	return c.do(ctx, http.MethodDelete, path("comments", commentID, "unlike"), nil, nil)
}

func (c *Client) do(ctx context.Context, method, p string, in, out any) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, method, p, in, out)
	})
	if err != nil {
		c.log.Warn("Comment service call failed", "method", method, "path", p, "error", err)
		return fmt.Errorf("%w: %s %s: %v", errors.ErrCrudFailure, method, p, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, p string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+p, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return statusError{code: resp.StatusCode, body: strings.TrimSpace(string(snippet))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func path(segments ...string) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

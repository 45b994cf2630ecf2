// Package comment contains the comment thread model shared by the hub and its clients.
// Comments and replies are owned by the external CRUD service; everything here is a
// value copy of what that service returned or what a peer broadcast.
package comment

import (
	"time"

	"github.com/samber/lo"
)

const (
	DefaultUsername = "Anonymous"
	DefaultAvatar   = "/noavatar.jpg"
)

// UserSnapshot is the author data denormalized onto a comment or reply.
// It is captured when the entity is created or fetched and never refreshed.
type UserSnapshot struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// User is the identity of the person driving a client session.
type User struct {
	ID       string `json:"id" validate:"required"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// Snapshot applies the same fallbacks the listing site shows for incomplete profiles.
func (u User) Snapshot() UserSnapshot {
	return UserSnapshot{
		Username: lo.Ternary(u.Username == "", DefaultUsername, u.Username),
		Avatar:   lo.Ternary(u.Avatar == "", DefaultAvatar, u.Avatar),
	}
}

type Reply struct {
	ID        string        `json:"id" validate:"required"`
	CommentID string        `json:"commentId" validate:"required"`
	UserID    string        `json:"userId"`
	Text      string        `json:"text"`
	CreatedAt time.Time     `json:"createdAt"`
	User      *UserSnapshot `json:"user,omitempty"`
}

type Comment struct {
	ID        string        `json:"id" validate:"required"`
	PostID    string        `json:"postId"`
	UserID    string        `json:"userId"`
	Text      string        `json:"text"`
	Likes     int           `json:"likes"`
	CreatedAt time.Time     `json:"createdAt"`
	Replies   []Reply       `json:"replies"`
	User      *UserSnapshot `json:"user,omitempty"`
}

// Clone returns a deep copy so that callers never share reply slices or snapshots.
func (c Comment) Clone() Comment {
	out := c
	out.User = cloneSnapshot(c.User)
	if c.Replies != nil {
		out.Replies = lo.Map(c.Replies, func(r Reply, _ int) Reply { return r.Clone() })
	}
	return out
}

func (r Reply) Clone() Reply {
	out := r
	out.User = cloneSnapshot(r.User)
	return out
}

// ReplyIndex returns the position of the reply with the given id, or -1.
func (c Comment) ReplyIndex(replyID string) int {
	for i := range c.Replies {
		if c.Replies[i].ID == replyID {
			return i
		}
	}
	return -1
}

func (c Comment) HasReplies() bool {
	return len(c.Replies) > 0
}

func cloneSnapshot(s *UserSnapshot) *UserSnapshot {
	if s == nil {
		return nil
	}
	return lo.ToPtr(*s)
}

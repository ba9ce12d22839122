package engagement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/csgonades/nade-api/nade"
	"github.com/csgonades/nade-api/store"
)

// MaxCommentLength is the longest comment accepted, in characters.
const MaxCommentLength = 1000

type Comment struct {
	ID        string    `json:"id"`
	NadeID    string    `json:"nadeId"`
	UserID    string    `json:"userId"`
	Nickname  string    `json:"nickname"`
	Avatar    string    `json:"avatar,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CommentInput struct {
	NadeID  string
	Author  nade.Owner
	Message string
}

func commentFromDocument(doc *store.Document) *Comment {
	f := doc.Fields
	return &Comment{
		ID:        doc.ID,
		NadeID:    f.String("nade_id"),
		UserID:    f.String("user_id"),
		Nickname:  f.String("nickname"),
		Avatar:    f.String("avatar"),
		Message:   f.String("message"),
		CreatedAt: f.Time("created_at"),
		UpdatedAt: f.Time("updated_at"),
	}
}

func cleanMessage(msg string) (string, error) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return "", fmt.Errorf("%w: comment is empty", nade.ErrValidation)
	}
	if utf8.RuneCountInString(msg) > MaxCommentLength {
		return "", fmt.Errorf("%w: comment is longer than %d characters", nade.ErrValidation, MaxCommentLength)
	}
	return msg, nil
}

type Comments struct {
	store Storage
	nades Nades
}

func NewComments(s Storage, nades Nades) *Comments {
	return &Comments{store: s, nades: nades}
}

// Add posts a comment on an accepted nade.
func (c *Comments) Add(ctx context.Context, in CommentInput) (*Comment, error) {
	if in.Author.UserID == "" {
		return nil, nade.ErrForbidden
	}
	msg, err := cleanMessage(in.Message)
	if err != nil {
		return nil, err
	}
	if _, err := acceptedNade(ctx, c.nades, in.NadeID); err != nil {
		return nil, err
	}

	doc, err := c.store.Add(ctx, store.Comments, store.Fields{
		"nade_id":    in.NadeID,
		"user_id":    in.Author.UserID,
		"nickname":   in.Author.Nickname,
		"avatar":     in.Author.Avatar,
		"message":    msg,
		"created_at": store.ServerTimestamp,
		"updated_at": store.ServerTimestamp,
	})
	if err != nil {
		return nil, storageErr("add comment", err)
	}
	if err := c.nades.IncrementCommentCount(ctx, in.NadeID); err != nil {
		return nil, err
	}
	return commentFromDocument(doc), nil
}

// Update rewrites the message of a comment. Only its author may do so.
func (c *Comments) Update(ctx context.Context, id, message string, caller Caller) (*Comment, error) {
	msg, err := cleanMessage(message)
	if err != nil {
		return nil, err
	}
	existing, err := c.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.UserID != caller.UserID {
		return nil, nade.ErrForbidden
	}
	err = c.store.Update(ctx, store.Comments, id, store.Fields{
		"message":    msg,
		"updated_at": store.ServerTimestamp,
	})
	if err != nil {
		return nil, storageErr("update comment", err)
	}
	return c.get(ctx, id)
}

// Delete removes a comment. Authors may delete their own comments and
// moderators may delete any.
func (c *Comments) Delete(ctx context.Context, id string, caller Caller) error {
	existing, err := c.get(ctx, id)
	if err != nil {
		return err
	}
	if existing.UserID != caller.UserID && !caller.Moderator {
		return nade.ErrForbidden
	}
	if err := c.store.Remove(ctx, store.Comments, id); err != nil {
		return storageErr("delete comment", err)
	}
	if err := c.nades.DecrementCommentCount(ctx, existing.NadeID); err != nil && !errors.Is(err, nade.ErrNotFound) {
		return err
	}
	return nil
}

// ListForNade returns the comments of a nade, oldest first.
func (c *Comments) ListForNade(ctx context.Context, nadeID string) ([]*Comment, error) {
	docs, err := c.store.Query(ctx, store.Comments, store.Query{
		Where:   []store.Predicate{store.Eq("nade_id", nadeID)},
		OrderBy: []store.Order{store.Asc("created_at")},
	})
	if err != nil {
		return nil, storageErr("list comments", err)
	}
	out := make([]*Comment, 0, len(docs))
	for _, doc := range docs {
		out = append(out, commentFromDocument(doc))
	}
	return out, nil
}

func (c *Comments) get(ctx context.Context, id string) (*Comment, error) {
	doc, err := c.store.Get(ctx, store.Comments, id)
	if err != nil {
		return nil, storageErr("get comment", err)
	}
	return commentFromDocument(doc), nil
}

// Package engagement stores what users do with nades: favorites and
// comments. Both keep the denormalized counters on the nade in step through
// the nade repository, which also takes care of cache invalidation.
package engagement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/csgonades/nade-api/nade"
	"github.com/csgonades/nade-api/store"
)

// Storage is the document store favorites and comments live in.
type Storage interface {
	Get(ctx context.Context, coll, id string) (*store.Document, error)
	Query(ctx context.Context, coll string, q store.Query) ([]*store.Document, error)
	Add(ctx context.Context, coll string, fields store.Fields) (*store.Document, error)
	Update(ctx context.Context, coll, id string, fields store.Fields, conds ...store.Predicate) error
	Remove(ctx context.Context, coll, id string) error
	Batch(ctx context.Context, fn func(store.Writer) error) error
}

// Nades is the part of the nade repository engagement needs.
type Nades interface {
	GetByID(ctx context.Context, id string) (*nade.Nade, error)
	IncrementFavoriteCount(ctx context.Context, id string) error
	DecrementFavoriteCount(ctx context.Context, id string) error
	IncrementCommentCount(ctx context.Context, id string) error
	DecrementCommentCount(ctx context.Context, id string) error
}

// Caller identifies who performs a write.
type Caller struct {
	UserID    string
	Moderator bool
}

func storageErr(op string, err error) error {
	if errors.Is(err, store.ErrNoDocument) {
		return nade.ErrNotFound
	}
	slog.Error("engagement storage failure", "op", op, "error", err)
	return fmt.Errorf("%w: %s", nade.ErrInternal, op)
}

// acceptedNade returns the nade if it is publicly visible.
func acceptedNade(ctx context.Context, nades Nades, id string) (*nade.Nade, error) {
	n, err := nades.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.Status != nade.StatusAccepted {
		return nil, nade.ErrNotFound
	}
	return n, nil
}

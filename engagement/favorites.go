package engagement

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/csgonades/nade-api/nade"
	"github.com/csgonades/nade-api/store"
)

type Favorite struct {
	ID        string    `json:"id"`
	NadeID    string    `json:"nadeId"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

func favoriteFromDocument(doc *store.Document) *Favorite {
	return &Favorite{
		ID:        doc.ID,
		NadeID:    doc.Fields.String("nade_id"),
		UserID:    doc.Fields.String("user_id"),
		CreatedAt: doc.Fields.Time("created_at"),
	}
}

type Favorites struct {
	store Storage
	nades Nades
}

func NewFavorites(s Storage, nades Nades) *Favorites {
	return &Favorites{store: s, nades: nades}
}

// Add favorites an accepted nade for a user. Favoriting the same nade twice
// returns the existing favorite and leaves the count alone.
func (f *Favorites) Add(ctx context.Context, userID, nadeID string) (*Favorite, error) {
	if userID == "" {
		return nil, nade.ErrForbidden
	}
	if _, err := acceptedNade(ctx, f.nades, nadeID); err != nil {
		return nil, err
	}
	existing, err := f.find(ctx, userID, nadeID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	doc, err := f.store.Add(ctx, store.Favorites, store.Fields{
		"nade_id":    nadeID,
		"user_id":    userID,
		"created_at": store.ServerTimestamp,
	})
	if err != nil {
		return nil, storageErr("add favorite", err)
	}
	if err := f.nades.IncrementFavoriteCount(ctx, nadeID); err != nil {
		return nil, err
	}
	slog.Debug("favorite added", "user", userID, "nade", nadeID)
	return favoriteFromDocument(doc), nil
}

// Remove unfavorites a nade. Removing a favorite that does not exist is
// not an error.
func (f *Favorites) Remove(ctx context.Context, userID, nadeID string) error {
	var removed int64
	err := f.store.Batch(ctx, func(w store.Writer) error {
		n, err := w.RemoveWhere(ctx, store.Favorites, store.Eq("user_id", userID), store.Eq("nade_id", nadeID))
		removed = n
		return err
	})
	if err != nil {
		return storageErr("remove favorite", err)
	}
	if removed == 0 {
		return nil
	}
	if err := f.nades.DecrementFavoriteCount(ctx, nadeID); err != nil && !errors.Is(err, nade.ErrNotFound) {
		return err
	}
	return nil
}

// ListByUser returns a user's favorites, newest first.
func (f *Favorites) ListByUser(ctx context.Context, userID string) ([]*Favorite, error) {
	docs, err := f.store.Query(ctx, store.Favorites, store.Query{
		Where:   []store.Predicate{store.Eq("user_id", userID)},
		OrderBy: []store.Order{store.Desc("created_at")},
	})
	if err != nil {
		return nil, storageErr("list favorites", err)
	}
	out := make([]*Favorite, 0, len(docs))
	for _, doc := range docs {
		out = append(out, favoriteFromDocument(doc))
	}
	return out, nil
}

func (f *Favorites) find(ctx context.Context, userID, nadeID string) (*Favorite, error) {
	docs, err := f.store.Query(ctx, store.Favorites, store.Query{
		Where: []store.Predicate{store.Eq("user_id", userID), store.Eq("nade_id", nadeID)},
		Limit: 1,
	})
	if err != nil {
		return nil, storageErr("find favorite", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return favoriteFromDocument(docs[0]), nil
}

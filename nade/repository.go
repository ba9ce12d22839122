package nade

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/csgonades/nade-api/store"
)

// Storage is the document store the repository reads and writes.
type Storage interface {
	Get(ctx context.Context, coll, id string) (*store.Document, error)
	Query(ctx context.Context, coll string, q store.Query) ([]*store.Document, error)
	Add(ctx context.Context, coll string, fields store.Fields) (*store.Document, error)
	Update(ctx context.Context, coll, id string, fields store.Fields, conds ...store.Predicate) error
	Batch(ctx context.Context, fn func(store.Writer) error) error
}

// Repository is the only way the rest of the service reaches nades. Public
// reads go through the coordinator's caches; moderation queues and per-user
// listings always read storage.
type Repository struct {
	store       Storage
	cache       *Coordinator
	recentLimit int
}

func NewRepository(s Storage, c *Coordinator, recentLimit int) *Repository {
	if recentLimit <= 0 {
		recentLimit = 40
	}
	return &Repository{store: s, cache: c, recentLimit: recentLimit}
}

// Stats reports cache hit counters.
func (r *Repository) Stats() CacheStats {
	return r.cache.Stats()
}

// GetByID returns the nade with the given id, or ErrNotFound.
func (r *Repository) GetByID(ctx context.Context, id string) (*Nade, error) {
	if n, ok := r.cache.Item(id); ok {
		return n, nil
	}
	gen := r.cache.Generation()
	n, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cache.StoreItem(n, gen)
	return n, nil
}

// GetBySlug returns the nade with the given slug, or ErrNotFound.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*Nade, error) {
	if slug == "" {
		return nil, ErrNotFound
	}
	if n, ok := r.cache.ItemBySlug(slug); ok {
		return n, nil
	}
	gen := r.cache.Generation()
	docs, err := r.store.Query(ctx, store.Nades, store.Query{
		Where: []store.Predicate{store.Eq("slug", slug)},
		Limit: 1,
	})
	if err != nil {
		return nil, storageErr("get nade by slug", err)
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	n := fromDocument(docs[0])
	r.cache.StoreItem(n, gen)
	return n, nil
}

// GetByFilter returns the accepted nades of one map listing, best first.
func (r *Repository) GetByFilter(ctx context.Context, f Filter) ([]*Nade, error) {
	f = f.normalized()
	if err := f.validate(); err != nil {
		return nil, err
	}
	if ids, ok := r.cache.FilterIDs(f); ok {
		return r.resolve(ctx, ids, f.matches)
	}

	gen := r.cache.Generation()
	where := []store.Predicate{
		store.Eq("status", string(StatusAccepted)),
		store.Eq("map", f.Map),
		store.Eq("game_mode", string(f.GameMode)),
	}
	if f.Type != "" {
		where = append(where, store.Eq("type", string(f.Type)))
	}
	nades, err := r.query(ctx, "list nades", store.Query{Where: where})
	if err != nil {
		return nil, err
	}
	sortByScore(nades)

	r.cache.StoreFilterIDs(f, r.storeItems(nades, gen), gen)
	return nades, nil
}

// GetAll returns the most recently created accepted nades of a game mode.
// limit is capped at the configured recent limit.
func (r *Repository) GetAll(ctx context.Context, limit int, mode GameMode) ([]*Nade, error) {
	mode = mode.orDefault()
	if !mode.Valid() {
		return nil, validationf("unknown game mode %q", mode)
	}
	if limit <= 0 || limit > r.recentLimit {
		limit = r.recentLimit
	}
	keep := func(n *Nade) bool { return n.Status == StatusAccepted && n.GameMode == mode }

	if ids, ok := r.cache.RecentIDs(mode); ok {
		nades, err := r.resolve(ctx, ids, keep)
		if err != nil {
			return nil, err
		}
		return nades[:min(limit, len(nades))], nil
	}

	gen := r.cache.Generation()
	nades, err := r.query(ctx, "list recent nades", store.Query{
		Where: []store.Predicate{
			store.Eq("status", string(StatusAccepted)),
			store.Eq("game_mode", string(mode)),
		},
		OrderBy: []store.Order{store.Desc("created_at")},
		Limit:   r.recentLimit,
	})
	if err != nil {
		return nil, err
	}
	r.cache.StoreRecentIDs(mode, r.storeItems(nades, gen), gen)
	return nades[:min(limit, len(nades))], nil
}

func (r *Repository) GetPending(ctx context.Context) ([]*Nade, error) {
	return r.byStatus(ctx, StatusPending)
}

func (r *Repository) GetDeclined(ctx context.Context) ([]*Nade, error) {
	return r.byStatus(ctx, StatusDeclined)
}

func (r *Repository) GetDeleted(ctx context.Context) ([]*Nade, error) {
	return r.byStatus(ctx, StatusDeleted)
}

func (r *Repository) byStatus(ctx context.Context, status Status) ([]*Nade, error) {
	return r.query(ctx, "list "+string(status)+" nades", store.Query{
		Where:   []store.Predicate{store.Eq("status", string(status))},
		OrderBy: []store.Order{store.Desc("created_at")},
	})
}

// GetByUser returns every nade a user owns except deleted ones, newest
// first. Owners see their pending and declined nades here, so it is never
// cached.
func (r *Repository) GetByUser(ctx context.Context, userID string) ([]*Nade, error) {
	return r.query(ctx, "list user nades", store.Query{
		Where: []store.Predicate{
			store.Eq("user_id", userID),
			store.Neq("status", string(StatusDeleted)),
		},
		OrderBy: []store.Order{store.Desc("created_at")},
	})
}

// Save stores a new pending nade.
func (r *Repository) Save(ctx context.Context, in CreateInput) (*Nade, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	doc, err := r.store.Add(ctx, store.Nades, in.fields())
	if err != nil {
		return nil, storageErr("create nade", err)
	}
	n := fromDocument(doc)
	r.cache.Created(n)
	slog.Info("nade created", "id", n.ID, "map", n.Map, "type", n.Type, "user", n.Owner.UserID)
	return n, nil
}

// Update applies patch to the nade with the given id and returns the
// result as stored.
func (r *Repository) Update(ctx context.Context, id string, patch Patch, opts UpdateOptions) (*Nade, error) {
	if patch.empty() && !opts.SetNewUpdatedAt && !opts.SetNewCreatedAt {
		return nil, validationf("nothing to update")
	}
	if err := patch.validate(); err != nil {
		return nil, err
	}
	before, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Slug != nil && *patch.Slug != "" && *patch.Slug != before.Slug {
		if err := r.checkSlugFree(ctx, *patch.Slug, id); err != nil {
			return nil, err
		}
	}

	if err := r.store.Update(ctx, store.Nades, id, patch.fields(opts)); err != nil {
		if errors.Is(err, store.ErrDuplicate) && patch.Slug != nil {
			return nil, fmt.Errorf("%w: slug %q is taken", ErrConflict, *patch.Slug)
		}
		return nil, storageErr("update nade", err)
	}
	after, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cache.Updated(before, after, listAffecting(before, after))
	if before.Status != after.Status {
		slog.Info("nade status changed", "id", id, "from", before.Status, "to", after.Status)
	}
	return after, nil
}

func (r *Repository) checkSlugFree(ctx context.Context, slug, id string) error {
	docs, err := r.store.Query(ctx, store.Nades, store.Query{
		Where: []store.Predicate{store.Eq("slug", slug), store.Neq("id", id)},
		Limit: 1,
	})
	if err != nil {
		return storageErr("check slug", err)
	}
	if len(docs) > 0 {
		return fmt.Errorf("%w: slug %q is taken", ErrConflict, slug)
	}
	return nil
}

// Delete soft deletes a nade. It disappears from every listing and is
// purged once the grace period has passed.
func (r *Repository) Delete(ctx context.Context, id string) error {
	before, err := r.load(ctx, id)
	if err != nil {
		return err
	}
	if before.Status == StatusDeleted {
		return nil
	}
	err = r.store.Update(ctx, store.Nades, id, store.Fields{
		"status":     string(StatusDeleted),
		"updated_at": store.ServerTimestamp,
	})
	if err != nil {
		return storageErr("delete nade", err)
	}
	r.cache.Deleted(before)
	slog.Info("nade deleted", "id", id)
	return nil
}

// Purge removes a nade with its favorites and comments for good.
func (r *Repository) Purge(ctx context.Context, id string) error {
	n, err := r.load(ctx, id)
	if err != nil {
		return err
	}
	err = r.store.Batch(ctx, func(w store.Writer) error {
		if _, err := w.RemoveWhere(ctx, store.Favorites, store.Eq("nade_id", id)); err != nil {
			return err
		}
		if _, err := w.RemoveWhere(ctx, store.Comments, store.Eq("nade_id", id)); err != nil {
			return err
		}
		return w.Remove(ctx, store.Nades, id)
	})
	if err != nil {
		return storageErr("purge nade", err)
	}
	r.cache.Deleted(n)
	return nil
}

// PurgeDeleted purges every nade soft deleted before cutoff and returns how
// many were removed.
func (r *Repository) PurgeDeleted(ctx context.Context, cutoff time.Time) (int, error) {
	expired, err := r.query(ctx, "list expired nades", store.Query{
		Where: []store.Predicate{
			store.Eq("status", string(StatusDeleted)),
			store.Lt("updated_at", cutoff.UTC()),
		},
	})
	if err != nil {
		return 0, err
	}
	purged := 0
	for _, n := range expired {
		err := r.Purge(ctx, n.ID)
		switch {
		case err == nil:
			purged++
		case errors.Is(err, ErrNotFound):
			// removed by a concurrent purge
		default:
			return purged, err
		}
	}
	return purged, nil
}

func (r *Repository) IncrementFavoriteCount(ctx context.Context, id string) error {
	return r.adjustCounter(ctx, id, "favorite_count", 1)
}

func (r *Repository) DecrementFavoriteCount(ctx context.Context, id string) error {
	return r.adjustCounter(ctx, id, "favorite_count", -1)
}

func (r *Repository) IncrementCommentCount(ctx context.Context, id string) error {
	return r.adjustCounter(ctx, id, "comment_count", 1)
}

func (r *Repository) DecrementCommentCount(ctx context.Context, id string) error {
	return r.adjustCounter(ctx, id, "comment_count", -1)
}

// adjustCounter adds delta to a counter field. Decrements only apply while
// the counter stays non-negative; a decrement of a zero counter is a no-op.
func (r *Repository) adjustCounter(ctx context.Context, id, field string, delta int) error {
	n, err := r.load(ctx, id)
	if err != nil {
		return err
	}
	var conds []store.Predicate
	if delta < 0 {
		conds = append(conds, store.Gte(field, -delta))
	}
	err = r.store.Update(ctx, store.Nades, id, store.Fields{field: store.Increment(delta)}, conds...)
	if err != nil && !(delta < 0 && errors.Is(err, store.ErrNoDocument)) {
		return storageErr("update "+field, err)
	}
	r.cache.CountersChanged(n)
	return nil
}

// UpdateOwnerAcrossItems rewrites the owner of every nade owned by userID,
// either to refresh a changed nickname or avatar or to hand the nades to
// another user. It returns the number of nades changed.
func (r *Repository) UpdateOwnerAcrossItems(ctx context.Context, userID string, owner Owner) (int, error) {
	if userID == "" || owner.UserID == "" {
		return 0, validationf("owner is required")
	}
	owned, err := r.query(ctx, "list owned nades", store.Query{
		Where: []store.Predicate{store.Eq("user_id", userID)},
	})
	if err != nil {
		return 0, err
	}
	if len(owned) == 0 {
		return 0, nil
	}
	err = r.store.Batch(ctx, func(w store.Writer) error {
		for _, n := range owned {
			if err := w.Update(ctx, store.Nades, n.ID, ownerFields(owner)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, storageErr("update owners", err)
	}
	for _, before := range owned {
		after := *before
		after.Owner = owner
		r.cache.Updated(before, &after, false)
	}
	slog.Info("nade owner updated", "user", userID, "owner", owner.UserID, "count", len(owned))
	return len(owned), nil
}

// load reads a nade from storage, bypassing the cache.
func (r *Repository) load(ctx context.Context, id string) (*Nade, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	doc, err := r.store.Get(ctx, store.Nades, id)
	if err != nil {
		return nil, storageErr("get nade", err)
	}
	return fromDocument(doc), nil
}

func (r *Repository) query(ctx context.Context, op string, q store.Query) ([]*Nade, error) {
	docs, err := r.store.Query(ctx, store.Nades, q)
	if err != nil {
		return nil, storageErr(op, err)
	}
	nades := make([]*Nade, 0, len(docs))
	for _, doc := range docs {
		nades = append(nades, fromDocument(doc))
	}
	return nades, nil
}

// storeItems caches every nade of a listing and returns their ids in order.
func (r *Repository) storeItems(nades []*Nade, gen uint64) []string {
	ids := make([]string, len(nades))
	for i, n := range nades {
		r.cache.StoreItem(n, gen)
		ids[i] = n.ID
	}
	return ids
}

// resolve turns a cached id list back into nades, reading every item the
// item cache misses in a single query. Items that no longer pass keep are
// dropped.
func (r *Repository) resolve(ctx context.Context, ids []string, keep func(*Nade) bool) ([]*Nade, error) {
	found := make(map[string]*Nade, len(ids))
	var missing []string
	for _, id := range ids {
		if n, ok := r.cache.Item(id); ok {
			found[id] = n
		} else {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		gen := r.cache.Generation()
		loaded, err := r.query(ctx, "resolve nades", store.Query{
			Where: []store.Predicate{store.In("id", missing)},
		})
		if err != nil {
			return nil, err
		}
		for _, n := range loaded {
			r.cache.StoreItem(n, gen)
			found[n.ID] = n
		}
	}

	out := make([]*Nade, 0, len(ids))
	for _, id := range ids {
		if n := found[id]; n != nil && keep(n) {
			out = append(out, n)
		}
	}
	return out, nil
}

// sortByScore orders nades by display score, newest first on ties.
func sortByScore(nades []*Nade) {
	slices.SortStableFunc(nades, func(a, b *Nade) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

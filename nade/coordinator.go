package nade

import (
	"log/slog"
	"sync/atomic"

	"github.com/csgonades/nade-api/cache"
)

// Cache is the part of cache.Cache the coordinator uses.
type Cache[V any] interface {
	Get(key string) (V, bool)
	Set(key string, value V)
	Delete(key string)
	Stats() cache.Stats
}

// Coordinator owns the cached views of nades and decides which of them a
// write makes stale. Single nades (by id and by slug) live in the item
// cache; listings hold ordered id slices in the list cache.
//
// Every invalidation bumps a generation counter. A read that missed takes
// the generation before going to storage and hands it to the Store methods,
// which discard the result if an invalidation happened in between.
type Coordinator struct {
	items Cache[*Nade]
	lists Cache[[]string]
	gen   atomic.Uint64
}

func NewCoordinator(items Cache[*Nade], lists Cache[[]string]) *Coordinator {
	return &Coordinator{items: items, lists: lists}
}

// CacheStats reports hit counters for both caches.
type CacheStats struct {
	Items cache.Stats `json:"items"`
	Lists cache.Stats `json:"lists"`
}

func (c *Coordinator) Stats() CacheStats {
	return CacheStats{Items: c.items.Stats(), Lists: c.lists.Stats()}
}

func (c *Coordinator) Item(id string) (*Nade, bool) {
	return lookup(c.items, itemKey(id))
}

func (c *Coordinator) ItemBySlug(slug string) (*Nade, bool) {
	if slug == "" {
		return nil, false
	}
	return lookup(c.items, slugKey(slug))
}

// Generation returns the current invalidation count.
func (c *Coordinator) Generation() uint64 {
	return c.gen.Load()
}

// StoreItem caches n under its id and, when it has one, its slug. gen is
// the generation taken before n was read.
func (c *Coordinator) StoreItem(n *Nade, gen uint64) {
	if c.gen.Load() != gen {
		return
	}
	c.items.Set(itemKey(n.ID), n)
	if n.Slug != "" {
		c.items.Set(slugKey(n.Slug), n)
	}
	if c.gen.Load() != gen {
		c.dropItem(n)
	}
}

func (c *Coordinator) FilterIDs(f Filter) ([]string, bool) {
	return lookup(c.lists, filterKey(f))
}

func (c *Coordinator) StoreFilterIDs(f Filter, ids []string, gen uint64) {
	c.storeList(filterKey(f), ids, gen)
}

func (c *Coordinator) RecentIDs(mode GameMode) ([]string, bool) {
	return lookup(c.lists, recentKey(mode))
}

func (c *Coordinator) StoreRecentIDs(mode GameMode, ids []string, gen uint64) {
	c.storeList(recentKey(mode), ids, gen)
}

func (c *Coordinator) storeList(key string, ids []string, gen uint64) {
	if c.gen.Load() != gen {
		return
	}
	c.lists.Set(key, ids)
	if c.gen.Load() != gen {
		c.lists.Delete(key)
	}
}

// Created is called after a nade was inserted. New nades are pending and
// appear in no public listing, so nothing is dropped.
func (c *Coordinator) Created(*Nade) {}

// Updated is called after a write changed before into after. listAffecting
// reports whether the change can alter listing membership or order.
func (c *Coordinator) Updated(before, after *Nade, listAffecting bool) {
	c.gen.Add(1)
	c.dropItem(before)
	c.dropItem(after)
	if listAffecting {
		c.dropFilters(before)
		c.dropFilters(after)
	}
	if after.Status == StatusAccepted &&
		(before.Status != StatusAccepted || before.GameMode != after.GameMode || !before.CreatedAt.Equal(after.CreatedAt)) {
		c.lists.Delete(recentKey(before.GameMode))
		c.lists.Delete(recentKey(after.GameMode))
	}
}

// Deleted is called after n was soft deleted or purged. The recent list is
// left alone; its entries are checked on read and it expires on its own.
func (c *Coordinator) Deleted(n *Nade) {
	c.gen.Add(1)
	c.dropItem(n)
	c.dropFilters(n)
}

// CountersChanged is called after a favorite or comment count changed. The
// display score moves with the counts, so listings are dropped too.
func (c *Coordinator) CountersChanged(n *Nade) {
	c.Updated(n, n, true)
}

func (c *Coordinator) dropItem(n *Nade) {
	c.items.Delete(itemKey(n.ID))
	if n.Slug != "" {
		c.items.Delete(slugKey(n.Slug))
	}
}

func (c *Coordinator) dropFilters(n *Nade) {
	for _, k := range filterKeysOf(n) {
		c.lists.Delete(k)
	}
}

// lookup treats a failing cache backend as a miss.
func lookup[V any](c Cache[V], key string) (v V, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("cache lookup failed, falling back to storage", "key", key, "panic", r)
			var zero V
			v, ok = zero, false
		}
	}()
	return c.Get(key)
}

// listAffecting reports whether going from before to after can change which
// listings contain the nade or where it sorts in them.
func listAffecting(before, after *Nade) bool {
	return before.Status != after.Status ||
		before.Map != after.Map ||
		before.Type != after.Type ||
		before.GameMode != after.GameMode ||
		before.Slug != after.Slug ||
		before.FavoriteCount != after.FavoriteCount ||
		before.CommentCount != after.CommentCount ||
		scoreOf(before) != scoreOf(after)
}

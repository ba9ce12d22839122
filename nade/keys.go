package nade

import "fmt"

// Cache keys are built only here. Every namespace has its own prefix and
// filter components are always written in map, type, mode order so two
// callers can never spell the same key differently.
const (
	nsItem   = "nade:id:"
	nsSlug   = "nade:slug:"
	nsFilter = "nade:filter:"
	nsRecent = "nade:recent:"
)

func itemKey(id string) string { return nsItem + id }

func slugKey(slug string) string { return nsSlug + slug }

func filterKey(f Filter) string {
	return fmt.Sprintf("%s%s|%s|%s", nsFilter, f.Map, f.Type, f.GameMode.orDefault())
}

func recentKey(mode GameMode) string { return nsRecent + string(mode.orDefault()) }

// filterKeysOf returns the keys of every listing n can appear in: its typed
// filter and the untyped filter for its map and mode.
func filterKeysOf(n *Nade) []string {
	typed := Filter{Map: n.Map, Type: n.Type, GameMode: n.GameMode}
	untyped := Filter{Map: n.Map, GameMode: n.GameMode}
	return []string{filterKey(typed), filterKey(untyped)}
}

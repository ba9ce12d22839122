package store

import "fmt"

// Collection names.
const (
	Nades     = "nades"
	Favorites = "favorites"
	Comments  = "comments"
)

// collections lists the fields every collection accepts. The first entry is
// always the document id.
var collections = map[string][]string{
	Nades: {
		"id", "slug", "status", "status_info", "map", "type", "game_mode", "movement", "technique",
		"title", "description", "image_url", "video_id", "video_thumbnail_url", "video_duration",
		"user_id", "user_nickname", "user_avatar",
		"favorite_count", "comment_count", "view_count", "elo_score",
		"created_at", "updated_at",
	},
	Favorites: {"id", "nade_id", "user_id", "created_at"},
	Comments: {
		"id", "nade_id", "user_id", "nickname", "avatar", "message", "created_at", "updated_at",
	},
}

// Quoted identifiers keep "map" and "type" portable between Postgres and SQLite.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS "nades" (
		"id" TEXT PRIMARY KEY,
		"slug" TEXT,
		"status" TEXT NOT NULL,
		"status_info" TEXT,
		"map" TEXT NOT NULL,
		"type" TEXT NOT NULL,
		"game_mode" TEXT NOT NULL,
		"movement" TEXT,
		"technique" TEXT,
		"title" TEXT,
		"description" TEXT,
		"image_url" TEXT,
		"video_id" TEXT,
		"video_thumbnail_url" TEXT,
		"video_duration" BIGINT,
		"user_id" TEXT NOT NULL,
		"user_nickname" TEXT,
		"user_avatar" TEXT,
		"favorite_count" BIGINT NOT NULL DEFAULT 0,
		"comment_count" BIGINT NOT NULL DEFAULT 0,
		"view_count" BIGINT NOT NULL DEFAULT 0,
		"elo_score" BIGINT,
		"created_at" TIMESTAMP NOT NULL,
		"updated_at" TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS "nades_slug_idx" ON "nades" ("slug")`,
	`CREATE INDEX IF NOT EXISTS "nades_listing_idx" ON "nades" ("status", "map", "game_mode")`,
	`CREATE INDEX IF NOT EXISTS "nades_user_idx" ON "nades" ("user_id")`,
	`CREATE TABLE IF NOT EXISTS "favorites" (
		"id" TEXT PRIMARY KEY,
		"nade_id" TEXT NOT NULL,
		"user_id" TEXT NOT NULL,
		"created_at" TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS "favorites_user_nade_idx" ON "favorites" ("user_id", "nade_id")`,
	`CREATE TABLE IF NOT EXISTS "comments" (
		"id" TEXT PRIMARY KEY,
		"nade_id" TEXT NOT NULL,
		"user_id" TEXT NOT NULL,
		"nickname" TEXT,
		"avatar" TEXT,
		"message" TEXT NOT NULL,
		"created_at" TIMESTAMP NOT NULL,
		"updated_at" TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS "comments_nade_idx" ON "comments" ("nade_id")`,
}

func columnsOf(coll string) ([]string, error) {
	cols, ok := collections[coll]
	if !ok {
		return nil, fmt.Errorf("%w: collection %q", ErrUnknownField, coll)
	}
	return cols, nil
}

func checkField(coll, field string) error {
	cols, err := columnsOf(coll)
	if err != nil {
		return err
	}
	for _, c := range cols {
		if c == field {
			return nil
		}
	}
	return fmt.Errorf("%w: %s.%s", ErrUnknownField, coll, field)
}

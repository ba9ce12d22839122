package nade

import (
	"github.com/csgonades/nade-api/scoring"
	"github.com/csgonades/nade-api/store"
)

func scoreOf(n *Nade) int {
	return scoring.DisplayScore(scoring.Inputs{
		EloScore:      n.EloScore,
		FavoriteCount: n.FavoriteCount,
		CommentCount:  n.CommentCount,
	})
}

// fromDocument assembles a nade from its stored fields and derives its
// display score.
func fromDocument(doc *store.Document) *Nade {
	f := doc.Fields
	n := &Nade{
		ID:          doc.ID,
		Slug:        f.String("slug"),
		Status:      Status(f.String("status")),
		StatusInfo:  f.String("status_info"),
		Map:         f.String("map"),
		Type:        Type(f.String("type")),
		GameMode:    GameMode(f.String("game_mode")).orDefault(),
		Movement:    Movement(f.String("movement")),
		Technique:   Technique(f.String("technique")),
		Title:       f.String("title"),
		Description: f.String("description"),
		ImageURL:    f.String("image_url"),
		Video: Video{
			ID:              f.String("video_id"),
			ThumbnailURL:    f.String("video_thumbnail_url"),
			DurationSeconds: f.Int("video_duration"),
		},
		Owner: Owner{
			UserID:   f.String("user_id"),
			Nickname: f.String("user_nickname"),
			Avatar:   f.String("user_avatar"),
		},
		FavoriteCount: f.Int("favorite_count"),
		CommentCount:  f.Int("comment_count"),
		ViewCount:     f.Int("view_count"),
		EloScore:      f.OptionalInt("elo_score"),
		CreatedAt:     f.Time("created_at"),
		UpdatedAt:     f.Time("updated_at"),
	}
	n.Score = scoreOf(n)
	return n
}

func (in CreateInput) fields() store.Fields {
	return store.Fields{
		"slug":                nil,
		"status":              string(StatusPending),
		"map":                 in.Map,
		"type":                string(in.Type),
		"game_mode":           string(in.GameMode.orDefault()),
		"movement":            string(in.Movement),
		"technique":           string(in.Technique),
		"title":               in.Title,
		"description":         in.Description,
		"image_url":           in.ImageURL,
		"video_id":            in.Video.ID,
		"video_thumbnail_url": in.Video.ThumbnailURL,
		"video_duration":      in.Video.DurationSeconds,
		"user_id":             in.Owner.UserID,
		"user_nickname":       in.Owner.Nickname,
		"user_avatar":         in.Owner.Avatar,
		"favorite_count":      0,
		"comment_count":       0,
		"view_count":          0,
		"elo_score":           nil,
		"created_at":          store.ServerTimestamp,
		"updated_at":          store.ServerTimestamp,
	}
}

func (p Patch) fields(opts UpdateOptions) store.Fields {
	f := store.Fields{}
	if p.Slug != nil {
		if *p.Slug == "" {
			f["slug"] = nil
		} else {
			f["slug"] = *p.Slug
		}
	}
	if p.Status != nil {
		f["status"] = string(*p.Status)
	}
	if p.StatusInfo != nil {
		f["status_info"] = *p.StatusInfo
	}
	if p.Map != nil {
		f["map"] = *p.Map
	}
	if p.Type != nil {
		f["type"] = string(*p.Type)
	}
	if p.GameMode != nil {
		f["game_mode"] = string(*p.GameMode)
	}
	if p.Movement != nil {
		f["movement"] = string(*p.Movement)
	}
	if p.Technique != nil {
		f["technique"] = string(*p.Technique)
	}
	if p.Title != nil {
		f["title"] = *p.Title
	}
	if p.Description != nil {
		f["description"] = *p.Description
	}
	if p.ImageURL != nil {
		f["image_url"] = *p.ImageURL
	}
	if p.Video != nil {
		f["video_id"] = p.Video.ID
		f["video_thumbnail_url"] = p.Video.ThumbnailURL
		f["video_duration"] = p.Video.DurationSeconds
	}
	if p.Owner != nil {
		for k, v := range ownerFields(*p.Owner) {
			f[k] = v
		}
	}
	if opts.SetNewUpdatedAt {
		f["updated_at"] = store.ServerTimestamp
	}
	if opts.SetNewCreatedAt {
		f["created_at"] = store.ServerTimestamp
	}
	return f
}

func ownerFields(o Owner) store.Fields {
	return store.Fields{
		"user_id":       o.UserID,
		"user_nickname": o.Nickname,
		"user_avatar":   o.Avatar,
	}
}

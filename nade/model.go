// Package nade holds the grenade lineup domain: the content model, the
// cache coordinator that keeps cached views coherent with writes, and the
// repository every read and write goes through.
package nade

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
	StatusDeleted  Status = "deleted"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusDeclined, StatusDeleted:
		return true
	}
	return false
}

type Type string

const (
	TypeSmoke     Type = "smoke"
	TypeFlash     Type = "flash"
	TypeMolotov   Type = "molotov"
	TypeHEGrenade Type = "hegrenade"
)

func (t Type) Valid() bool {
	switch t {
	case TypeSmoke, TypeFlash, TypeMolotov, TypeHEGrenade:
		return true
	}
	return false
}

type GameMode string

const (
	GameModeCSGO GameMode = "csgo"
	GameModeCS2  GameMode = "cs2"
)

func (m GameMode) Valid() bool {
	return m == GameModeCSGO || m == GameModeCS2
}

// orDefault maps an unset game mode to csgo, matching how older clients
// that never send a mode are treated.
func (m GameMode) orDefault() GameMode {
	if m == "" {
		return GameModeCSGO
	}
	return m
}

type Movement string

const (
	MovementStationary    Movement = "stationary"
	MovementWalking       Movement = "walking"
	MovementRunning       Movement = "running"
	MovementCrouching     Movement = "crouching"
	MovementCrouchWalking Movement = "crouchwalking"
)

func (m Movement) Valid() bool {
	switch m {
	case "", MovementStationary, MovementWalking, MovementRunning, MovementCrouching, MovementCrouchWalking:
		return true
	}
	return false
}

type Technique string

const (
	TechniqueLeft      Technique = "left"
	TechniqueRight     Technique = "right"
	TechniqueBoth      Technique = "both"
	TechniqueJumpThrow Technique = "jumpthrow"
)

func (t Technique) Valid() bool {
	switch t {
	case "", TechniqueLeft, TechniqueRight, TechniqueBoth, TechniqueJumpThrow:
		return true
	}
	return false
}

// Maps are the map names nades can be filed under.
var Maps = []string{
	"dust2", "mirage", "inferno", "nuke", "overpass", "train", "vertigo",
	"cache", "cobblestone", "ancient", "anubis", "tuscan",
}

func validMap(m string) bool { return slices.Contains(Maps, m) }

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Owner is the user a nade is attributed to. Nickname and avatar are
// denormalized copies of the user's profile.
type Owner struct {
	UserID   string `json:"userId"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar,omitempty"`
}

// Video is the clip showing the throw, hosted on the video host.
type Video struct {
	ID              string `json:"id,omitempty"`
	ThumbnailURL    string `json:"thumbnailUrl,omitempty"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
}

// Nade is a grenade lineup. Score is derived at assembly time from
// EloScore, FavoriteCount and CommentCount and is never stored.
type Nade struct {
	ID            string    `json:"id"`
	Slug          string    `json:"slug,omitempty"`
	Status        Status    `json:"status"`
	StatusInfo    string    `json:"statusInfo,omitempty"`
	Map           string    `json:"map"`
	Type          Type      `json:"type"`
	GameMode      GameMode  `json:"gameMode"`
	Movement      Movement  `json:"movement,omitempty"`
	Technique     Technique `json:"technique,omitempty"`
	Title         string    `json:"title,omitempty"`
	Description   string    `json:"description,omitempty"`
	ImageURL      string    `json:"imageUrl,omitempty"`
	Video         Video     `json:"video"`
	Owner         Owner     `json:"user"`
	FavoriteCount int       `json:"favoriteCount"`
	CommentCount  int       `json:"commentCount"`
	ViewCount     int       `json:"viewCount"`
	EloScore      *int      `json:"eloScore,omitempty"`
	Score         int       `json:"score"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Filter selects a public listing. Type is optional; an empty GameMode
// means csgo.
type Filter struct {
	Map      string
	Type     Type
	GameMode GameMode
}

func (f Filter) normalized() Filter {
	f.Map = strings.ToLower(strings.TrimSpace(f.Map))
	f.GameMode = f.GameMode.orDefault()
	return f
}

func (f Filter) validate() error {
	if !validMap(f.Map) {
		return validationf("unknown map %q", f.Map)
	}
	if f.Type != "" && !f.Type.Valid() {
		return validationf("unknown nade type %q", f.Type)
	}
	if !f.GameMode.Valid() {
		return validationf("unknown game mode %q", f.GameMode)
	}
	return nil
}

// matches reports whether n belongs in the public listing for f.
func (f Filter) matches(n *Nade) bool {
	return n.Status == StatusAccepted &&
		n.Map == f.Map &&
		n.GameMode == f.GameMode &&
		(f.Type == "" || n.Type == f.Type)
}

// CreateInput is a new nade submission.
type CreateInput struct {
	Map         string
	Type        Type
	GameMode    GameMode
	Movement    Movement
	Technique   Technique
	Title       string
	Description string
	ImageURL    string
	Video       Video
	Owner       Owner
}

func (in CreateInput) validate() error {
	if !validMap(in.Map) {
		return validationf("unknown map %q", in.Map)
	}
	if !in.Type.Valid() {
		return validationf("unknown nade type %q", in.Type)
	}
	if !in.GameMode.orDefault().Valid() {
		return validationf("unknown game mode %q", in.GameMode)
	}
	if !in.Movement.Valid() {
		return validationf("unknown movement %q", in.Movement)
	}
	if !in.Technique.Valid() {
		return validationf("unknown technique %q", in.Technique)
	}
	if in.Owner.UserID == "" {
		return validationf("owner is required")
	}
	return nil
}

// Patch is a partial update. Nil fields are left untouched; an empty Slug
// clears the slug.
type Patch struct {
	Slug        *string
	Status      *Status
	StatusInfo  *string
	Map         *string
	Type        *Type
	GameMode    *GameMode
	Movement    *Movement
	Technique   *Technique
	Title       *string
	Description *string
	ImageURL    *string
	Video       *Video
	Owner       *Owner
}

func (p Patch) empty() bool {
	return p == Patch{}
}

func (p Patch) validate() error {
	if p.Slug != nil && *p.Slug != "" && !slugPattern.MatchString(*p.Slug) {
		return validationf("slug %q must be lowercase words separated by dashes", *p.Slug)
	}
	if p.Status != nil && !p.Status.Valid() {
		return validationf("unknown status %q", *p.Status)
	}
	if p.Map != nil && !validMap(*p.Map) {
		return validationf("unknown map %q", *p.Map)
	}
	if p.Type != nil && !p.Type.Valid() {
		return validationf("unknown nade type %q", *p.Type)
	}
	if p.GameMode != nil && !p.GameMode.Valid() {
		return validationf("unknown game mode %q", *p.GameMode)
	}
	if p.Movement != nil && !p.Movement.Valid() {
		return validationf("unknown movement %q", *p.Movement)
	}
	if p.Technique != nil && !p.Technique.Valid() {
		return validationf("unknown technique %q", *p.Technique)
	}
	if p.Owner != nil && p.Owner.UserID == "" {
		return validationf("owner is required")
	}
	return nil
}

// UpdateOptions control the timestamps an update touches.
type UpdateOptions struct {
	// SetNewUpdatedAt stamps updatedAt with the store's clock.
	SetNewUpdatedAt bool
	// SetNewCreatedAt restamps createdAt, which moves the nade to the top
	// of the recent list once accepted.
	SetNewCreatedAt bool
}

// VoteInput is a head-to-head vote between two nades.
type VoteInput struct {
	NadeA  string `json:"nadeA"`
	NadeB  string `json:"nadeB"`
	Winner string `json:"winner"`
}

func (v VoteInput) validate() error {
	if v.NadeA == "" || v.NadeB == "" {
		return validationf("both nades are required")
	}
	if v.NadeA == v.NadeB {
		return validationf("a nade cannot be voted against itself")
	}
	if v.Winner != v.NadeA && v.Winner != v.NadeB {
		return fmt.Errorf("%w: winner %q is not part of the vote", ErrValidation, v.Winner)
	}
	return nil
}

// VoteResult carries both nades after their ratings were adjusted.
type VoteResult struct {
	A *Nade `json:"nadeA"`
	B *Nade `json:"nadeB"`
}

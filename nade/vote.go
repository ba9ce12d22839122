package nade

import (
	"context"
	"log/slog"

	"github.com/csgonades/nade-api/scoring"
	"github.com/csgonades/nade-api/store"
)

// Vote settles a head-to-head vote between two accepted nades and stores
// both adjusted ratings in one batch. Ratings are read from storage, not
// the cache, so concurrent votes on the same pair race with last write
// wins.
func (r *Repository) Vote(ctx context.Context, in VoteInput) (*VoteResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	a, err := r.load(ctx, in.NadeA)
	if err != nil {
		return nil, err
	}
	b, err := r.load(ctx, in.NadeB)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusAccepted || b.Status != StatusAccepted {
		return nil, validationf("only accepted nades can be voted on")
	}

	res := scoring.Pairwise(scoring.Rating(a.EloScore), scoring.Rating(b.EloScore), in.Winner == a.ID)
	err = r.store.Batch(ctx, func(w store.Writer) error {
		if err := w.Update(ctx, store.Nades, a.ID, store.Fields{"elo_score": res.A}); err != nil {
			return err
		}
		return w.Update(ctx, store.Nades, b.ID, store.Fields{"elo_score": res.B})
	})
	if err != nil {
		return nil, storageErr("store vote", err)
	}

	newA, newB := withElo(a, res.A), withElo(b, res.B)
	r.cache.Updated(a, newA, true)
	r.cache.Updated(b, newB, true)
	slog.Debug("vote recorded", "winner", in.Winner, "a", a.ID, "elo_a", res.A, "b", b.ID, "elo_b", res.B)
	return &VoteResult{A: newA, B: newB}, nil
}

func withElo(n *Nade, elo int) *Nade {
	out := *n
	out.EloScore = &elo
	out.Score = scoreOf(&out)
	return &out
}

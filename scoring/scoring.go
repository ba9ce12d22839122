// Package scoring computes nade ratings: the ELO-style adjustment applied
// after a head-to-head vote and the display score used to rank listings.
//
// All functions are pure. Given the same inputs they return the same
// integers, which lets cached and freshly assembled nades compare equal.
package scoring

import "math"

const (
	// K is the sensitivity of a single pairwise vote.
	K = 40
	// DefaultRating is used for nades that have never been voted on.
	DefaultRating = 1400

	// popularityWeight scales the logarithmic interaction bonus.
	popularityWeight = 10
)

// Result holds the new ratings of both participants of a vote.
type Result struct {
	A int `json:"a"`
	B int `json:"b"`
}

// WinProbability is the expected chance that a player rated ra beats one
// rated rb.
func WinProbability(ra, rb float64) float64 {
	return 1 / (1 + math.Pow(10, (rb-ra)/400))
}

// Pairwise returns the adjusted ratings after a vote between A and B.
// Both results are rounded to the nearest integer.
func Pairwise(ratingA, ratingB int, winnerIsA bool) Result {
	ra, rb := float64(ratingA), float64(ratingB)
	pa := WinProbability(ra, rb)
	pb := WinProbability(rb, ra)

	scoreA, scoreB := 0.0, 1.0
	if winnerIsA {
		scoreA, scoreB = 1, 0
	}

	return Result{
		A: int(math.Round(ra + K*(scoreA-pa))),
		B: int(math.Round(rb + K*(scoreB-pb))),
	}
}

// Rating returns the stored ELO score, or DefaultRating when the nade has
// not been rated yet.
func Rating(elo *int) int {
	if elo == nil {
		return DefaultRating
	}
	return *elo
}

// Inputs are the stored fields the display score is derived from.
type Inputs struct {
	EloScore      *int
	FavoriteCount int
	CommentCount  int
}

// DisplayScore is the rating plus a popularity bonus of
// 10*ln(favorites+comments), with the interaction count floored at 1 so an
// untouched nade scores exactly its rating.
func DisplayScore(in Inputs) int {
	interactions := max(in.FavoriteCount+in.CommentCount, 1)
	bonus := popularityWeight * math.Log(float64(interactions))
	return int(math.Round(float64(Rating(in.EloScore)) + bonus))
}

// Package evaluator wraps the hand-ranking library behind the two calls the
// session needs: rank a single player's cards, and pick the tying-best
// subset out of a group of ranked hands.
package evaluator

import (
	"fmt"

	"github.com/chehsunliu/poker"
)

// Summary is the ranked description of a resolved hand. Rank runs 1 (high
// card) to 9 (straight flush), bigger is better. Score is the library's
// internal ordering (lower is better) and is what Winners compares; it is
// not part of the wire payload.
type Summary struct {
	Descr string `json:"descr"`
	Rank  int    `json:"rank"`
	Score int32  `json:"-"`
}

// Folded is the synthetic summary attached to a player who folds.
func Folded() *Summary {
	return &Summary{Descr: "-folded-"}
}

// Evaluate ranks the best 5-card hand out of the given card codes
// (hole + community, 5 to 7 cards).
func Evaluate(codes []string) (*Summary, error) {
	if len(codes) < 5 || len(codes) > 7 {
		return nil, fmt.Errorf("evaluate: want 5-7 cards, got %d", len(codes))
	}
	cards := make([]poker.Card, len(codes))
	for i, code := range codes {
		cards[i] = poker.NewCard(code)
	}
	score := poker.Evaluate(cards)
	return &Summary{
		Descr: poker.RankString(score),
		Rank:  10 - int(poker.RankClass(score)),
		Score: score,
	}, nil
}

// Winners returns the indexes of the summaries that tie for best, in input
// order. Summaries must come from Evaluate.
func Winners(summaries []*Summary) []int {
	if len(summaries) == 0 {
		return nil
	}
	best := summaries[0].Score
	for _, s := range summaries[1:] {
		if s.Score < best {
			best = s.Score
		}
	}
	var winners []int
	for i, s := range summaries {
		if s.Score == best {
			winners = append(winners, i)
		}
	}
	return winners
}

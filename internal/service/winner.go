package service

import (
	"fmt"
	"sort"

	"github.com/GoPolymarket/dutchauction/internal/model"
	"github.com/GoPolymarket/dutchauction/internal/strategy"
)

// Candidate is a bidder that decided to buy this tick. Weight ranks
// candidates for tie-breaks.
type Candidate struct {
	Bidder model.Bidder
	Weight float64
}

// WinnerSelector picks one winner among the willing bidders of a tick.
// Given a seeded Rand the pick is deterministic.
type WinnerSelector interface {
	Name() string
	Select(cands []Candidate, rng strategy.Rand) (Candidate, bool)
}

// FirstWilling takes the first willing bidder in roster order.
type FirstWilling struct{}

func (FirstWilling) Name() string { return "first" }

func (FirstWilling) Select(cands []Candidate, _ strategy.Rand) (Candidate, bool) {
	if len(cands) == 0 {
		return Candidate{}, false
	}
	return cands[0], true
}

// UniformRandom picks any willing bidder with equal probability.
type UniformRandom struct{}

func (UniformRandom) Name() string { return "random" }

func (UniformRandom) Select(cands []Candidate, rng strategy.Rand) (Candidate, bool) {
	switch len(cands) {
	case 0:
		return Candidate{}, false
	case 1:
		return cands[0], true
	}
	return cands[rng.Intn(len(cands))], true
}

// TopN scores every candidate as weight * (0.1 + 0.9*u), keeps the N best, and
// takes the best with probability BestProbability, else a uniform pick among
// the N.
type TopN struct {
	N               int
	BestProbability float64
}

func (TopN) Name() string { return "top_n" }

func (t TopN) Select(cands []Candidate, rng strategy.Rand) (Candidate, bool) {
	switch len(cands) {
	case 0:
		return Candidate{}, false
	case 1:
		return cands[0], true
	}

	type scored struct {
		c     Candidate
		score float64
		idx   int
	}
	ranked := make([]scored, len(cands))
	for i, c := range cands {
		ranked[i] = scored{c: c, score: c.Weight * (0.1 + 0.9*rng.Float64()), idx: i}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	n := t.N
	if n <= 0 || n > len(ranked) {
		n = len(ranked)
	}
	if rng.Float64() < t.BestProbability {
		return ranked[0].c, true
	}
	return ranked[rng.Intn(n)].c, true
}

func NewWinnerSelector(name string, topN int, bestProbability float64) (WinnerSelector, error) {
	switch name {
	case "first":
		return FirstWilling{}, nil
	case "random":
		return UniformRandom{}, nil
	case "", "top_n":
		if bestProbability < 0 || bestProbability > 1 {
			return nil, fmt.Errorf("tie_break_best_probability must be within [0,1], got %v", bestProbability)
		}
		if topN <= 0 {
			topN = 3
		}
		return TopN{N: topN, BestProbability: bestProbability}, nil
	default:
		return nil, fmt.Errorf("unknown tie_break %q", name)
	}
}

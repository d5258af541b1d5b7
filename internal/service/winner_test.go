package service

import (
	"testing"

	"github.com/GoPolymarket/dutchauction/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedRand struct {
	floats []float64
	ints   []int
}

func (f *fixedRand) Float64() float64 {
	v := f.floats[0]
	f.floats = f.floats[1:]
	return v
}

func (f *fixedRand) Intn(n int) int {
	v := f.ints[0] % n
	f.ints = f.ints[1:]
	return v
}

func cands(ids ...string) []Candidate {
	out := make([]Candidate, 0, len(ids))
	for _, id := range ids {
		out = append(out, Candidate{Bidder: model.Bidder{ID: id}, Weight: 1})
	}
	return out
}

func TestFirstWilling(t *testing.T) {
	_, ok := FirstWilling{}.Select(nil, nil)
	assert.False(t, ok)

	c, ok := FirstWilling{}.Select(cands("a", "b"), nil)
	require.True(t, ok)
	assert.Equal(t, "a", c.Bidder.ID)
}

func TestUniformRandom(t *testing.T) {
	c, ok := UniformRandom{}.Select(cands("a", "b", "c"), &fixedRand{ints: []int{2}})
	require.True(t, ok)
	assert.Equal(t, "c", c.Bidder.ID)

	// a single candidate draws nothing
	c, ok = UniformRandom{}.Select(cands("solo"), &fixedRand{})
	require.True(t, ok)
	assert.Equal(t, "solo", c.Bidder.ID)
}

func TestTopNPicksBestWithProbability(t *testing.T) {
	sel := TopN{N: 3, BestProbability: 0.7}
	// scores: a=0.1, b=1.0, c=0.55, d=0.28; then 0.5 < 0.7 takes the best
	rng := &fixedRand{floats: []float64{0, 1, 0.5, 0.2, 0.5}}

	c, ok := sel.Select(cands("a", "b", "c", "d"), rng)
	require.True(t, ok)
	assert.Equal(t, "b", c.Bidder.ID)
}

func TestTopNFallsBackToUniformAmongTop(t *testing.T) {
	sel := TopN{N: 3, BestProbability: 0.7}
	// ranking b, c, d, a; 0.9 misses the best draw; Intn picks index 2 -> d
	rng := &fixedRand{floats: []float64{0, 1, 0.5, 0.2, 0.9}, ints: []int{2}}

	c, ok := sel.Select(cands("a", "b", "c", "d"), rng)
	require.True(t, ok)
	assert.Equal(t, "d", c.Bidder.ID)
}

func TestTopNWeightFavoursPreferredBidders(t *testing.T) {
	sel := TopN{N: 2, BestProbability: 1}
	in := []Candidate{
		{Bidder: model.Bidder{ID: "neutral"}, Weight: 1},
		{Bidder: model.Bidder{ID: "fan"}, Weight: 1.5},
	}
	c, ok := sel.Select(in, &fixedRand{floats: []float64{0.5, 0.5, 0}})
	require.True(t, ok)
	assert.Equal(t, "fan", c.Bidder.ID)
}

func TestNewWinnerSelector(t *testing.T) {
	s, err := NewWinnerSelector("top_n", 0, 0.7)
	require.NoError(t, err)
	assert.Equal(t, TopN{N: 3, BestProbability: 0.7}, s)

	s, err = NewWinnerSelector("first", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "first", s.Name())

	_, err = NewWinnerSelector("top_n", 3, 1.2)
	assert.Error(t, err)

	_, err = NewWinnerSelector("loudest", 0, 0)
	assert.Error(t, err)
}

package service

import (
	"testing"

	"github.com/GoPolymarket/dutchauction/internal/config"
	"github.com/GoPolymarket/dutchauction/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestBidderRegistrySplitsHumanAndAgents(t *testing.T) {
	r, err := NewBidderRegistry([]model.Bidder{
		human(100),
		sniper("s1", 500, 1000),
		{ID: "t1", Name: "t1", Strategy: model.StrategyThreshold},
	}, "human", config.RateConfig{QPS: 2, Burst: 3})
	require.NoError(t, err)

	assert.True(t, r.IsHuman("human"))
	assert.False(t, r.IsHuman("s1"))
	assert.False(t, r.IsHuman("ghost"))

	agents := r.Agents()
	require.Len(t, agents, 2)
	assert.Equal(t, "s1", agents[0].Bidder.ID)
	assert.Equal(t, model.StrategySniper, agents[0].Policy.Name())

	lim := r.GetLimiter("human")
	require.NotNil(t, lim)
	assert.Equal(t, rate.Limit(2), lim.Limit())
	assert.Equal(t, 3, lim.Burst())

	ids := []string{}
	for _, b := range r.List() {
		ids = append(ids, b.ID)
	}
	assert.Equal(t, []string{"human", "s1", "t1"}, ids)
}

func TestBidderRegistryValidation(t *testing.T) {
	cases := map[string][]model.Bidder{
		"duplicate":        {human(1), human(1)},
		"missing human":    {sniper("s1", 1, 1)},
		"unknown strategy": {human(1), {ID: "x", Strategy: "gambler"}},
		"negative balance": {human(-1)},
		"second human":     {human(1), {ID: "other", Human: true}},
	}
	for name, bidders := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewBidderRegistry(bidders, "human", config.RateConfig{})
			assert.Error(t, err)
		})
	}
}

func TestBiddersFromConfig(t *testing.T) {
	out := BiddersFromConfig([]config.BidderConfig{{
		ID:           "b1",
		Balance:      1500,
		Strategy:     "budget_guard",
		Threshold:    700,
		Reserve:      300,
		TriggerPrice: 0,
	}})
	require.Len(t, out, 1)
	assert.Equal(t, "b1", out[0].Name, "name defaults to id")
	assert.True(t, out[0].Balance.Equal(dec(1500)))
	assert.True(t, out[0].Params.Reserve.Equal(dec(300)))
	assert.True(t, out[0].Params.TriggerPrice.IsZero())
}

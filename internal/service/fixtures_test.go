package service

import (
	"sync"
	"testing"
	"time"

	"github.com/GoPolymarket/dutchauction/internal/config"
	"github.com/GoPolymarket/dutchauction/internal/model"
	"github.com/GoPolymarket/dutchauction/internal/strategy"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// scenarioLot is 1000 down to 200 in steps of 100 with no tick delay.
func scenarioLot(name string) model.Lot {
	return model.Lot{
		Name:          name,
		StartingPrice: dec(1000),
		FloorPrice:    dec(200),
		PriceStep:     dec(100),
		DemandIndex:   0.5,
		Categories:    []string{"tulip"},
	}
}

func human(balance int64) model.Bidder {
	return model.Bidder{ID: "human", Name: "Player", Balance: dec(balance), Human: true}
}

func sniper(id string, trigger, balance int64) model.Bidder {
	return model.Bidder{
		ID:       id,
		Name:     id,
		Balance:  dec(balance),
		Strategy: model.StrategySniper,
		Params:   model.PolicyParams{TriggerPrice: dec(trigger)},
	}
}

type recordingDeals struct {
	mu    sync.Mutex
	deals []*model.Deal
}

func (r *recordingDeals) Record(d *model.Deal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deals = append(r.deals, d)
}

func (r *recordingDeals) All() []*model.Deal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*model.Deal(nil), r.deals...)
}

type recordingEvents struct {
	mu     sync.Mutex
	events []model.RoundEvent
}

func (r *recordingEvents) Publish(evt model.RoundEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingEvents) Types() []model.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	registry *BidderRegistry
	state    *RoundStateManager
	engine   *Engine
	deals    *recordingDeals
	events   *recordingEvents
}

func newHarness(t *testing.T, lots []model.Lot, bidders []model.Bidder, cfg EngineConfig) *harness {
	t.Helper()
	catalog, err := NewLotCatalog(lots)
	require.NoError(t, err)
	registry, err := NewBidderRegistry(bidders, "human", config.RateConfig{})
	require.NoError(t, err)

	h := &harness{
		registry: registry,
		deals:    &recordingDeals{},
		events:   &recordingEvents{},
	}
	rng := strategy.NewLockedRand(7)
	clock := func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	h.state = NewRoundStateManager(catalog, registry, StateOptions{
		Rand:   rng,
		Deals:  h.deals,
		Events: h.events,
		Clock:  clock,
	})
	h.engine = NewEngine(h.state, registry, FirstWilling{}, rng, cfg)
	h.engine.now = clock
	return h
}

package service

import (
	"fmt"
	"sync"

	"github.com/GoPolymarket/dutchauction/internal/config"
	"github.com/GoPolymarket/dutchauction/internal/model"
	"github.com/GoPolymarket/dutchauction/internal/strategy"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// Agent is an automated bidder with its decision policy.
type Agent struct {
	Bidder model.Bidder
	Policy strategy.Policy
}

// BidderRegistry holds the static bidder roster: identities, policies and the
// per-bidder request limiters. Balances live in the RoundStateManager.
type BidderRegistry struct {
	mu       sync.RWMutex
	bidders  map[string]model.Bidder
	order    []string
	agents   []Agent
	humanID  string
	limiters map[string]*rate.Limiter
}

func NewBidderRegistry(bidders []model.Bidder, humanID string, rateCfg config.RateConfig) (*BidderRegistry, error) {
	r := &BidderRegistry{
		bidders:  make(map[string]model.Bidder, len(bidders)),
		limiters: make(map[string]*rate.Limiter, len(bidders)),
		humanID:  humanID,
	}

	for _, b := range bidders {
		if b.ID == "" {
			return nil, fmt.Errorf("bidder id is required")
		}
		if _, dup := r.bidders[b.ID]; dup {
			return nil, fmt.Errorf("duplicate bidder %q", b.ID)
		}
		if b.Balance.IsNegative() {
			return nil, fmt.Errorf("bidder %q: balance must not be negative", b.ID)
		}
		if b.ID == humanID {
			b.Human = true
		}
		if b.Human {
			if b.ID != humanID {
				return nil, fmt.Errorf("bidder %q marked human but human_bidder_id is %q", b.ID, humanID)
			}
		} else {
			policy, err := strategy.New(b)
			if err != nil {
				return nil, err
			}
			r.agents = append(r.agents, Agent{Bidder: b, Policy: policy})
		}
		r.bidders[b.ID] = b
		r.order = append(r.order, b.ID)
		r.registerLimiter(b.ID, rateCfg)
	}

	if humanID != "" {
		if _, ok := r.bidders[humanID]; !ok {
			return nil, fmt.Errorf("human bidder %q is not in the roster", humanID)
		}
	}
	return r, nil
}

func (r *BidderRegistry) registerLimiter(id string, cfg config.RateConfig) {
	// 0 QPS means no limit
	limit := rate.Limit(cfg.QPS)
	if limit == 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst == 0 {
		burst = 1
	}
	r.limiters[id] = rate.NewLimiter(limit, burst)
}

func (r *BidderRegistry) Get(id string) (model.Bidder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bidders[id]
	return b, ok
}

// Agents returns the automated bidders in roster order.
func (r *BidderRegistry) Agents() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Agent, len(r.agents))
	copy(out, r.agents)
	return out
}

func (r *BidderRegistry) HumanID() string {
	return r.humanID
}

func (r *BidderRegistry) IsHuman(id string) bool {
	b, ok := r.Get(id)
	return ok && b.Human
}

// List returns every bidder in roster order.
func (r *BidderRegistry) List() []model.Bidder {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Bidder, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.bidders[id])
	}
	return out
}

// OpeningBalances is the balance every bidder starts the process with.
func (r *BidderRegistry) OpeningBalances() map[string]decimal.Decimal {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]decimal.Decimal, len(r.bidders))
	for id, b := range r.bidders {
		out[id] = b.Balance
	}
	return out
}

func (r *BidderRegistry) GetLimiter(id string) *rate.Limiter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.limiters[id]
}

// BiddersFromConfig converts the config roster into model bidders.
func BiddersFromConfig(entries []config.BidderConfig) []model.Bidder {
	out := make([]model.Bidder, 0, len(entries))
	for _, e := range entries {
		name := e.Name
		if name == "" {
			name = e.ID
		}
		out = append(out, model.Bidder{
			ID:                  e.ID,
			Name:                name,
			Balance:             decimal.NewFromFloat(e.Balance),
			Human:               e.Human,
			Strategy:            model.StrategyName(e.Strategy),
			PreferredCategories: e.PreferredCategories,
			Params: model.PolicyParams{
				Threshold:      decimal.NewFromFloat(e.Threshold),
				PatienceFactor: e.PatienceFactor,
				BaseThreshold:  decimal.NewFromFloat(e.BaseThreshold),
				SoftThreshold:  decimal.NewFromFloat(e.SoftThreshold),
				BuyChance:      e.BuyChance,
				Reserve:        decimal.NewFromFloat(e.Reserve),
				TriggerPrice:   decimal.NewFromFloat(e.TriggerPrice),
			},
		})
	}
	return out
}

package strategy

import (
	"fmt"

	"github.com/GoPolymarket/dutchauction/internal/model"
	"github.com/shopspring/decimal"
)

// Threshold buys once the price is at or under its threshold.
type Threshold struct {
	Threshold decimal.Decimal
}

func (Threshold) Name() model.StrategyName { return model.StrategyThreshold }

func (s Threshold) Decide(in Input, _ Rand) (bool, error) {
	if err := nonNegative("threshold", s.Threshold); err != nil {
		return false, err
	}
	limit := orDefault(s.Threshold, unbounded).Mul(PreferenceBonus(in.Preferred, in.Lot.Categories))
	return in.Price.LessThanOrEqual(limit), nil
}

// Patient scales its threshold down by a patience factor and so holds out longer.
type Patient struct {
	Threshold      decimal.Decimal
	PatienceFactor float64
}

func (Patient) Name() model.StrategyName { return model.StrategyPatient }

func (s Patient) Decide(in Input, _ Rand) (bool, error) {
	if err := nonNegative("threshold", s.Threshold); err != nil {
		return false, err
	}
	if s.PatienceFactor < 0 {
		return false, fmt.Errorf("patience_factor must not be negative, got %v", s.PatienceFactor)
	}
	factor := decimal.NewFromFloat(orDefaultFloat(s.PatienceFactor, 0.9))
	limit := orDefault(s.Threshold, unbounded).
		Mul(factor).
		Mul(PreferenceBonus(in.Preferred, in.Lot.Categories))
	return in.Price.LessThanOrEqual(limit), nil
}

// DemandAware pays up to 10% more for low-demand lots and 10% less for hot ones.
type DemandAware struct {
	BaseThreshold decimal.Decimal
}

func (DemandAware) Name() model.StrategyName { return model.StrategyDemandAware }

func (s DemandAware) Decide(in Input, _ Rand) (bool, error) {
	if err := nonNegative("base_threshold", s.BaseThreshold); err != nil {
		return false, err
	}
	demand := in.Lot.DemandIndex
	if demand < 0 || demand > 1 {
		return false, fmt.Errorf("lot %q demand_index %v out of range", in.Lot.Name, demand)
	}
	adjust := decimal.NewFromFloat(0.9 + (1.0-demand)*0.2)
	limit := orDefault(s.BaseThreshold, unbounded).
		Mul(adjust).
		Mul(PreferenceBonus(in.Preferred, in.Lot.Categories))
	return in.Price.LessThanOrEqual(limit), nil
}

// Randomized flips a biased coin once the price is under its soft threshold.
// The coin is only drawn when the price qualifies.
type Randomized struct {
	SoftThreshold decimal.Decimal
	BuyChance     float64
}

func (Randomized) Name() model.StrategyName { return model.StrategyRandomized }

func (s Randomized) Decide(in Input, rng Rand) (bool, error) {
	if err := nonNegative("soft_threshold", s.SoftThreshold); err != nil {
		return false, err
	}
	if s.BuyChance < 0 || s.BuyChance > 1 {
		return false, fmt.Errorf("buy_chance must be within [0,1], got %v", s.BuyChance)
	}
	if in.Price.GreaterThan(orDefault(s.SoftThreshold, unbounded)) {
		return false, nil
	}
	if rng == nil {
		return false, fmt.Errorf("randomized strategy needs a random source")
	}
	return rng.Float64() < orDefaultFloat(s.BuyChance, 0.3), nil
}

// BudgetGuard buys under its threshold only if the purchase leaves the reserve intact.
type BudgetGuard struct {
	Threshold decimal.Decimal
	Reserve   decimal.Decimal
}

func (BudgetGuard) Name() model.StrategyName { return model.StrategyBudgetGuard }

func (s BudgetGuard) Decide(in Input, _ Rand) (bool, error) {
	if err := nonNegative("threshold", s.Threshold); err != nil {
		return false, err
	}
	if err := nonNegative("reserve", s.Reserve); err != nil {
		return false, err
	}
	limit := orDefault(s.Threshold, unbounded).Mul(PreferenceBonus(in.Preferred, in.Lot.Categories))
	if in.Price.GreaterThan(limit) {
		return false, nil
	}
	return in.Balance.Sub(in.Price).GreaterThanOrEqual(s.Reserve), nil
}

// Sniper waits for one trigger price. An unset trigger never fires.
type Sniper struct {
	TriggerPrice decimal.Decimal
}

func (Sniper) Name() model.StrategyName { return model.StrategySniper }

func (s Sniper) Decide(in Input, _ Rand) (bool, error) {
	if err := nonNegative("trigger_price", s.TriggerPrice); err != nil {
		return false, err
	}
	limit := s.TriggerPrice.Mul(PreferenceBonus(in.Preferred, in.Lot.Categories))
	return in.Price.LessThanOrEqual(limit), nil
}

// New builds the policy named by the bidder's strategy.
func New(b model.Bidder) (Policy, error) {
	p := b.Params
	var policy Policy
	switch b.Strategy {
	case model.StrategyThreshold:
		policy = Threshold{Threshold: p.Threshold}
	case model.StrategyPatient:
		policy = Patient{Threshold: p.Threshold, PatienceFactor: p.PatienceFactor}
	case model.StrategyDemandAware:
		policy = DemandAware{BaseThreshold: p.BaseThreshold}
	case model.StrategyRandomized:
		policy = Randomized{SoftThreshold: p.SoftThreshold, BuyChance: p.BuyChance}
	case model.StrategyBudgetGuard:
		policy = BudgetGuard{Threshold: p.Threshold, Reserve: p.Reserve}
	case model.StrategySniper:
		policy = Sniper{TriggerPrice: p.TriggerPrice}
	default:
		return nil, fmt.Errorf("bidder %q: unknown strategy %q", b.ID, b.Strategy)
	}
	return policy, nil
}

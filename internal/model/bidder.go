package model

import "github.com/shopspring/decimal"

type StrategyName string

const (
	StrategyThreshold   StrategyName = "threshold"
	StrategyPatient     StrategyName = "patient"
	StrategyDemandAware StrategyName = "demand_aware"
	StrategyRandomized  StrategyName = "randomized"
	StrategyBudgetGuard StrategyName = "budget_guard"
	StrategySniper      StrategyName = "sniper"
)

// PolicyParams holds the knobs of every strategy. Zero means "not set" and the
// strategy falls back to its default.
type PolicyParams struct {
	Threshold      decimal.Decimal `json:"threshold,omitempty"`
	PatienceFactor float64         `json:"patience_factor,omitempty"`
	BaseThreshold  decimal.Decimal `json:"base_threshold,omitempty"`
	SoftThreshold  decimal.Decimal `json:"soft_threshold,omitempty"`
	BuyChance      float64         `json:"buy_chance,omitempty"`
	Reserve        decimal.Decimal `json:"reserve,omitempty"`
	TriggerPrice   decimal.Decimal `json:"trigger_price,omitempty"`
}

// Bidder is a participant. Balance is the opening balance; live balances are
// owned by the round state manager.
type Bidder struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	Balance             decimal.Decimal `json:"balance"`
	Human               bool            `json:"is_human"`
	Strategy            StrategyName    `json:"strategy,omitempty"`
	PreferredCategories []string        `json:"preferred_categories,omitempty"`
	Params              PolicyParams    `json:"params"`
}

// BidderView is the public projection served to clients.
type BidderView struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Human    bool            `json:"is_human"`
	Strategy StrategyName    `json:"strategy,omitempty"`
	Balance  decimal.Decimal `json:"balance"`
}

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeSold    Outcome = "sold"
	OutcomeExpired Outcome = "expired"
)

// RoundView is an immutable snapshot of one auction round.
type RoundView struct {
	RoundID      uint64           `json:"round_id"`
	Lot          Lot              `json:"lot"`
	CurrentPrice decimal.Decimal  `json:"current_price"`
	Running      bool             `json:"running"`
	Outcome      Outcome          `json:"outcome"`
	WinnerID     string           `json:"winner_id,omitempty"`
	WinnerName   string           `json:"winner_name,omitempty"`
	SettlePrice  *decimal.Decimal `json:"settle_price,omitempty"`
	StartedAt    time.Time        `json:"started_at"`
	LastTickAt   time.Time        `json:"last_tick_at"`
	SettledAt    *time.Time       `json:"settled_at,omitempty"`
}

func (r RoundView) Clone() RoundView {
	out := r
	out.Lot = r.Lot.Clone()
	if r.SettlePrice != nil {
		p := *r.SettlePrice
		out.SettlePrice = &p
	}
	if r.SettledAt != nil {
		t := *r.SettledAt
		out.SettledAt = &t
	}
	return out
}

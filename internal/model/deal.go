package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Deal is written once per sold round and never updated.
type Deal struct {
	ID         uint64          `json:"id"`
	RoundID    uint64          `json:"round_id"`
	LotName    string          `json:"lot_name"`
	WinnerID   string          `json:"winner_id"`
	WinnerName string          `json:"winner_name"`
	Price      decimal.Decimal `json:"price"`
	CreatedAt  time.Time       `json:"created_at"`
}

// DealFilter narrows a recent-deals query. Results are always newest first.
type DealFilter struct {
	Limit    int
	WinnerID string
	From     *time.Time
	To       *time.Time
}

func (f DealFilter) Match(d *Deal) bool {
	if f.WinnerID != "" && d.WinnerID != f.WinnerID {
		return false
	}
	if f.From != nil && d.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && d.CreatedAt.After(*f.To) {
		return false
	}
	return true
}

package model

import "github.com/shopspring/decimal"

const (
	ActionBuy  = "buy"
	ActionWait = "wait"
)

// HumanActionRequest is the body of POST /v1/human/action.
// RoundID is the round the player was looking at; zero means "whatever is running".
type HumanActionRequest struct {
	Action  string `json:"action" binding:"required,oneof=buy wait"`
	RoundID uint64 `json:"round_id,omitempty"`
}

type HumanActionResponse struct {
	Status      string           `json:"status"`
	Message     string           `json:"message"`
	RoundID     uint64           `json:"round_id,omitempty"`
	SettlePrice *decimal.Decimal `json:"price,omitempty"`
}

// BalanceAdjustRequest is an admin top-up (positive) or charge (negative).
type BalanceAdjustRequest struct {
	Delta decimal.Decimal `json:"delta"`
}

type BalanceResponse struct {
	BidderID string          `json:"bidder_id"`
	Balance  decimal.Decimal `json:"balance"`
}

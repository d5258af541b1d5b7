package model

import "time"

type EventType string

const (
	EventRoundStarted EventType = "round_started"
	EventPriceChanged EventType = "price_changed"
	EventSold         EventType = "sold"
	EventExpired      EventType = "expired"
	EventSnapshot     EventType = "snapshot" // first frame to a new stream client
)

// IsOutcome reports whether the event closes a round.
func (t EventType) IsOutcome() bool {
	return t == EventSold || t == EventExpired
}

type RoundEvent struct {
	Type  EventType `json:"type"`
	Round RoundView `json:"round"`
	At    time.Time `json:"at"`
}

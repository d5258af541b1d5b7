package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Lot is a sellable item. A round works on its own copy, never the catalog entry.
type Lot struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	FloorPrice    decimal.Decimal `json:"floor_price"`
	PriceStep     decimal.Decimal `json:"price_step"`
	TickInterval  time.Duration   `json:"tick_interval"`
	DemandIndex   float64         `json:"demand_index"` // 0..1
	Categories    []string        `json:"categories,omitempty"`
}

func (l Lot) Validate() error {
	if l.Name == "" {
		return errors.New("lot name is required")
	}
	if l.FloorPrice.IsNegative() {
		return fmt.Errorf("lot %q: floor_price must not be negative", l.Name)
	}
	if !l.FloorPrice.LessThan(l.StartingPrice) {
		return fmt.Errorf("lot %q: floor_price %s must be below starting_price %s",
			l.Name, l.FloorPrice, l.StartingPrice)
	}
	if !l.PriceStep.IsPositive() {
		return fmt.Errorf("lot %q: price_step must be positive", l.Name)
	}
	if l.TickInterval < 0 {
		return fmt.Errorf("lot %q: tick_interval must not be negative", l.Name)
	}
	if l.DemandIndex < 0 || l.DemandIndex > 1 {
		return fmt.Errorf("lot %q: demand_index %.3f out of range [0,1]", l.Name, l.DemandIndex)
	}
	return nil
}

type lotFields Lot

// lotJSON carries the tick as a duration string ("2s") plus milliseconds,
// matching the config input.
type lotJSON struct {
	lotFields
	TickInterval   string `json:"tick_interval"`
	TickIntervalMS int64  `json:"tick_interval_ms"`
}

func (l Lot) MarshalJSON() ([]byte, error) {
	return json.Marshal(lotJSON{
		lotFields:      lotFields(l),
		TickInterval:   l.TickInterval.String(),
		TickIntervalMS: l.TickInterval.Milliseconds(),
	})
}

func (l *Lot) UnmarshalJSON(data []byte) error {
	var aux lotJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*l = Lot(aux.lotFields)
	switch {
	case aux.TickInterval != "":
		d, err := time.ParseDuration(aux.TickInterval)
		if err != nil {
			return fmt.Errorf("lot %q: tick_interval: %w", l.Name, err)
		}
		l.TickInterval = d
	default:
		l.TickInterval = time.Duration(aux.TickIntervalMS) * time.Millisecond
	}
	return nil
}

// Clone returns a deep copy so category slices are never shared with the catalog.
func (l Lot) Clone() Lot {
	out := l
	if l.Categories != nil {
		out.Categories = append([]string(nil), l.Categories...)
	}
	return out
}

package service

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/GoPolymarket/dutchauction/internal/config"
	"github.com/GoPolymarket/dutchauction/internal/model"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type LotSelection string

const (
	SelectRoundRobin LotSelection = "round_robin"
	SelectRandom     LotSelection = "random"
)

// DefaultTickInterval applies to configured lots without a tick_interval.
const DefaultTickInterval = time.Second

func ParseLotSelection(s string) (LotSelection, error) {
	switch LotSelection(s) {
	case "", SelectRoundRobin:
		return SelectRoundRobin, nil
	case SelectRandom:
		return SelectRandom, nil
	default:
		return "", fmt.Errorf("unknown lot selection %q", s)
	}
}

// LotCatalog is the read-only list of lots. An empty catalog is legal; it only
// fails when a round is requested.
type LotCatalog struct {
	lots []model.Lot
}

func NewLotCatalog(lots []model.Lot) (*LotCatalog, error) {
	seen := make(map[string]struct{}, len(lots))
	out := make([]model.Lot, 0, len(lots))
	for _, lot := range lots {
		if err := lot.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[lot.Name]; dup {
			return nil, fmt.Errorf("duplicate lot %q", lot.Name)
		}
		seen[lot.Name] = struct{}{}
		out = append(out, lot.Clone())
	}
	return &LotCatalog{lots: out}, nil
}

func (c *LotCatalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.lots)
}

// At returns a copy of the i-th lot.
func (c *LotCatalog) At(i int) model.Lot {
	return c.lots[i].Clone()
}

func (c *LotCatalog) All() []model.Lot {
	out := make([]model.Lot, 0, c.Len())
	for i := 0; i < c.Len(); i++ {
		out = append(out, c.At(i))
	}
	return out
}

// LoadLots returns the configured lots: the catalog file when one is set,
// the inline list otherwise. Invalid entries fail the load.
func LoadLots(cfg *config.Config) ([]model.Lot, error) {
	if cfg.Auction.CatalogFile != "" {
		return LoadCatalogFile(cfg.Auction.CatalogFile)
	}
	return LotsFromConfig(cfg.Lots)
}

type catalogFile struct {
	Lots []config.LotConfig `yaml:"lots"`
}

// LoadCatalogFile decodes a standalone YAML catalog. Unknown keys are rejected.
func LoadCatalogFile(path string) ([]model.Lot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var file catalogFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}
	return LotsFromConfig(file.Lots)
}

// LotsFromConfig builds catalog lots from config entries. A missing
// tick_interval means DefaultTickInterval.
func LotsFromConfig(entries []config.LotConfig) ([]model.Lot, error) {
	lots := make([]model.Lot, 0, len(entries))
	for i, e := range entries {
		tick := DefaultTickInterval
		if e.TickInterval != "" {
			parsed, err := time.ParseDuration(e.TickInterval)
			if err != nil {
				return nil, fmt.Errorf("lot #%d (%s): tick_interval: %w", i, e.Name, err)
			}
			tick = parsed
		}
		lot := model.Lot{
			Name:          e.Name,
			Description:   e.Description,
			StartingPrice: decimal.NewFromFloat(e.StartingPrice),
			FloorPrice:    decimal.NewFromFloat(e.FloorPrice),
			PriceStep:     decimal.NewFromFloat(e.PriceStep),
			TickInterval:  tick,
			DemandIndex:   e.DemandIndex,
			Categories:    e.Categories,
		}
		if err := lot.Validate(); err != nil {
			return nil, fmt.Errorf("lot #%d: %w", i, err)
		}
		if tick <= 0 {
			return nil, fmt.Errorf("lot #%d (%s): tick_interval %q must be positive", i, e.Name, e.TickInterval)
		}
		lots = append(lots, lot)
	}
	return lots, nil
}

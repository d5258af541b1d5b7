package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/GoPolymarket/dutchauction/internal/model"
	"github.com/GoPolymarket/dutchauction/internal/pkg/apperrors"
	"github.com/GoPolymarket/dutchauction/internal/pkg/logger"
	"github.com/GoPolymarket/dutchauction/internal/pkg/metrics"
	"github.com/GoPolymarket/dutchauction/internal/strategy"
	"github.com/shopspring/decimal"
)

// DealSink receives one record per sold round. Record must not block.
type DealSink interface {
	Record(deal *model.Deal)
}

// EventPublisher receives round lifecycle events. Publish must not block.
type EventPublisher interface {
	Publish(evt model.RoundEvent)
}

type SettleRequest struct {
	RoundID  uint64 // 0 means the current round
	BidderID string // ignored for expired outcomes
	Outcome  model.Outcome
	Source   string // "engine" or "human", for metrics
}

type StateOptions struct {
	Selection LotSelection
	Rand      strategy.Rand
	Deals     DealSink
	Events    EventPublisher
	Clock     func() time.Time
}

// RoundStateManager serializes every read and write of the current round and
// of bidder balances behind one mutex.
type RoundStateManager struct {
	mu sync.Mutex

	catalog   *LotCatalog
	selection LotSelection
	cursor    int
	rng       strategy.Rand

	round    *model.RoundView
	nextID   uint64
	nextDeal uint64
	balances map[string]decimal.Decimal
	names    map[string]string

	corrupted error

	deals  DealSink
	events EventPublisher
	now    func() time.Time
}

func NewRoundStateManager(catalog *LotCatalog, registry *BidderRegistry, opts StateOptions) *RoundStateManager {
	if catalog == nil {
		catalog = &LotCatalog{}
	}
	if opts.Selection == "" {
		opts.Selection = SelectRoundRobin
	}
	if opts.Rand == nil {
		opts.Rand = strategy.NewLockedRand(time.Now().UnixNano())
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	m := &RoundStateManager{
		catalog:   catalog,
		selection: opts.Selection,
		rng:       opts.Rand,
		balances:  make(map[string]decimal.Decimal),
		names:     make(map[string]string),
		deals:     opts.Deals,
		events:    opts.Events,
		now:       opts.Clock,
	}
	if registry != nil {
		m.balances = registry.OpeningBalances()
		for _, b := range registry.List() {
			m.names[b.ID] = b.Name
		}
	}
	return m
}

// guard runs fn under the lock. A panic inside fn marks the state corrupted;
// every later call then fails with STATE_CORRUPTED.
func (m *RoundStateManager) guard(op string, fn func() error) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.corrupted != nil {
		return m.corrupted
	}
	defer func() {
		if r := recover(); r != nil {
			m.corrupted = apperrors.New(apperrors.ErrStateCorrupted,
				fmt.Sprintf("round state corrupted during %s", op), fmt.Errorf("%v", r))
			logger.Error("round state corrupted", "op", op, "panic", r)
			err = m.corrupted
		}
	}()
	return fn()
}

// ResetRound selects the next lot and opens a fresh round at its starting
// price. With an empty catalog the previous round is left as it was.
func (m *RoundStateManager) ResetRound() (model.RoundView, error) {
	var view model.RoundView
	err := m.guard("reset_round", func() error {
		if m.catalog.Len() == 0 {
			return apperrors.New(apperrors.ErrEmptyCatalog, "lot catalog is empty", nil)
		}
		lot := m.catalog.At(m.pickLot())
		now := m.now()
		m.nextID++
		m.round = &model.RoundView{
			RoundID:      m.nextID,
			Lot:          lot,
			CurrentPrice: lot.StartingPrice,
			Running:      true,
			Outcome:      model.OutcomePending,
			StartedAt:    now,
			LastTickAt:   now,
		}
		metrics.CurrentPrice.WithLabelValues(lot.Name).Set(lot.StartingPrice.InexactFloat64())
		view = m.round.Clone()
		m.publish(model.EventRoundStarted, view)
		return nil
	})
	return view, err
}

func (m *RoundStateManager) pickLot() int {
	n := m.catalog.Len()
	if m.selection == SelectRandom {
		return m.rng.Intn(n)
	}
	i := m.cursor % n
	m.cursor = (m.cursor + 1) % n
	return i
}

// Snapshot returns a copy of the current round.
func (m *RoundStateManager) Snapshot() (model.RoundView, error) {
	var view model.RoundView
	err := m.guard("snapshot", func() error {
		if m.round == nil {
			return apperrors.New(apperrors.ErrNotRunning, "no round has been started", nil)
		}
		view = m.round.Clone()
		return nil
	})
	return view, err
}

// SetPrice lowers the price of round roundID. Calls for a stale or closed
// round, price increases and prices under the floor are ignored; the bool
// reports whether the price was applied.
func (m *RoundStateManager) SetPrice(roundID uint64, price decimal.Decimal) (bool, error) {
	applied := false
	err := m.guard("set_price", func() error {
		r := m.round
		if r == nil || !r.Running || r.RoundID != roundID {
			return nil
		}
		if price.GreaterThan(r.CurrentPrice) || price.LessThan(r.Lot.FloorPrice) {
			logger.Warn("price update rejected", "round_id", roundID, "price", price, "current", r.CurrentPrice)
			return nil
		}
		r.CurrentPrice = price
		r.LastTickAt = m.now()
		applied = true
		metrics.CurrentPrice.WithLabelValues(r.Lot.Name).Set(price.InexactFloat64())
		m.publish(model.EventPriceChanged, r.Clone())
		return nil
	})
	return applied, err
}

// AdjustBalance applies delta to a bidder balance and returns the new balance.
// A result below zero is rejected and nothing changes.
func (m *RoundStateManager) AdjustBalance(bidderID string, delta decimal.Decimal) (decimal.Decimal, error) {
	var out decimal.Decimal
	err := m.guard("adjust_balance", func() error {
		var err error
		out, err = m.adjustLocked(bidderID, delta)
		return err
	})
	return out, err
}

func (m *RoundStateManager) adjustLocked(bidderID string, delta decimal.Decimal) (decimal.Decimal, error) {
	bal, ok := m.balances[bidderID]
	if !ok {
		return decimal.Zero, apperrors.NewUnknownBidder(bidderID)
	}
	next := bal.Add(delta)
	if next.IsNegative() {
		return bal, apperrors.New(apperrors.ErrInsufficientBalance,
			fmt.Sprintf("balance %s cannot cover %s", bal, delta.Neg()), nil)
	}
	m.balances[bidderID] = next
	return next, nil
}

// Settle closes the running round. It is the only way a round ends, and the
// first caller wins: later callers get ALREADY_SETTLED and change nothing.
// A sold settlement debits the winner in the same critical section.
func (m *RoundStateManager) Settle(req SettleRequest) (model.RoundView, error) {
	var view model.RoundView
	err := m.guard("settle", func() error {
		r := m.round
		if r == nil {
			return apperrors.New(apperrors.ErrNotRunning, "no round has been started", nil)
		}
		if !r.Running || (req.RoundID != 0 && req.RoundID != r.RoundID) {
			metrics.SettleConflicts.WithLabelValues(req.Source).Inc()
			return apperrors.New(apperrors.ErrAlreadySettled,
				fmt.Sprintf("round %d already settled", r.RoundID), nil)
		}

		now := m.now()
		price := r.CurrentPrice

		switch req.Outcome {
		case model.OutcomeSold:
			name, ok := m.names[req.BidderID]
			if !ok {
				return apperrors.NewUnknownBidder(req.BidderID)
			}
			if m.balances[req.BidderID].LessThan(price) {
				return apperrors.New(apperrors.ErrInsufficientBalance,
					fmt.Sprintf("bidder %q cannot afford %s", req.BidderID, price), nil)
			}
			if _, err := m.adjustLocked(req.BidderID, price.Neg()); err != nil {
				return err
			}
			r.WinnerID = req.BidderID
			r.WinnerName = name
			r.SettlePrice = &price
		case model.OutcomeExpired:
			r.WinnerID = ""
			r.WinnerName = ""
			r.SettlePrice = nil
		default:
			return apperrors.NewInvalidRequest(fmt.Sprintf("cannot settle with outcome %q", req.Outcome))
		}

		r.Running = false
		r.Outcome = req.Outcome
		r.SettledAt = &now
		view = r.Clone()

		metrics.RoundsTotal.WithLabelValues(string(req.Outcome)).Inc()
		if req.Outcome == model.OutcomeSold {
			m.recordDeal(view, now)
			m.publish(model.EventSold, view)
		} else {
			m.publish(model.EventExpired, view)
		}
		logger.Info("round settled",
			"round_id", view.RoundID,
			"lot", view.Lot.Name,
			"outcome", view.Outcome,
			"winner_id", view.WinnerID,
			"price", price.String(),
			"source", req.Source,
		)
		return nil
	})
	return view, err
}

func (m *RoundStateManager) recordDeal(view model.RoundView, at time.Time) {
	if m.deals == nil {
		return
	}
	m.nextDeal++
	m.deals.Record(&model.Deal{
		ID:         m.nextDeal,
		RoundID:    view.RoundID,
		LotName:    view.Lot.Name,
		WinnerID:   view.WinnerID,
		WinnerName: view.WinnerName,
		Price:      *view.SettlePrice,
		CreatedAt:  at,
	})
}

func (m *RoundStateManager) publish(t model.EventType, view model.RoundView) {
	if m.events == nil {
		return
	}
	m.events.Publish(model.RoundEvent{Type: t, Round: view, At: m.now()})
}

// Balances returns a copy of every bidder balance.
func (m *RoundStateManager) Balances() (map[string]decimal.Decimal, error) {
	var out map[string]decimal.Decimal
	err := m.guard("balances", func() error {
		out = make(map[string]decimal.Decimal, len(m.balances))
		for id, b := range m.balances {
			out[id] = b
		}
		return nil
	})
	return out, err
}

func (m *RoundStateManager) Balance(bidderID string) (decimal.Decimal, error) {
	var out decimal.Decimal
	err := m.guard("balance", func() error {
		b, ok := m.balances[bidderID]
		if !ok {
			return apperrors.NewUnknownBidder(bidderID)
		}
		out = b
		return nil
	})
	return out, err
}

// ReplaceCatalog swaps the lot catalog used by later resets. The current
// round keeps its own lot copy.
func (m *RoundStateManager) ReplaceCatalog(c *LotCatalog) error {
	return m.guard("replace_catalog", func() error {
		if c == nil {
			c = &LotCatalog{}
		}
		m.catalog = c
		m.cursor = 0
		return nil
	})
}

func (m *RoundStateManager) Catalog() *LotCatalog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.catalog
}

package service

import (
	"context"
	"errors"
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

type EngineConfig struct {
	AutoReset  bool
	ResetDelay time.Duration
}

// TickResult describes what one tick did to the round.
type TickResult struct {
	RoundID      uint64
	Price        decimal.Decimal
	TickInterval time.Duration
	Ended        bool
	Outcome      model.Outcome
	WinnerID     string
}

// Engine drives the price-decay loop of the current round. At most one loop
// runs at a time; Start replaces it and Stop joins it.
type Engine struct {
	state    *RoundStateManager
	registry *BidderRegistry
	selector WinnerSelector
	rng      strategy.Rand
	cfg      EngineConfig

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool
}

func NewEngine(state *RoundStateManager, registry *BidderRegistry, selector WinnerSelector, rng strategy.Rand, cfg EngineConfig) *Engine {
	if selector == nil {
		selector = FirstWilling{}
	}
	if rng == nil {
		rng = strategy.NewLockedRand(time.Now().UnixNano())
	}
	return &Engine{
		state:    state,
		registry: registry,
		selector: selector,
		rng:      rng,
		cfg:      cfg,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// sleepCtx waits for d or until ctx is cancelled. It reports whether the full
// duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Start launches the tick loop, replacing a loop that is already running.
// A fresh round is opened unless one is already running.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopLocked()

	view, err := e.state.Snapshot()
	if err != nil && !errors.Is(err, apperrors.NotRunning) {
		return err
	}
	if err != nil || !view.Running {
		if _, err := e.state.ResetRound(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done
	go e.run(ctx, done)
	logger.Info("auction engine started")
	return nil
}

// Stop cancels the loop and waits for it to exit. After Stop returns the
// loop makes no further state changes.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

func (e *Engine) stopLocked() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
	e.cancel = nil
	e.done = nil
	logger.Info("auction engine stopped")
}

// Running reports whether a loop is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

func (e *Engine) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		if !e.holdPrice(ctx) {
			return
		}
		res, err := e.Tick(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("auction engine halted", "error", err)
			return
		}
		if !res.Ended {
			continue
		}
		if !e.cfg.AutoReset {
			if e.superseded(res.RoundID) {
				continue
			}
			logger.Info("round ended, waiting for a manual reset", "round_id", res.RoundID, "outcome", res.Outcome)
			return
		}
		if !e.sleep(ctx, e.cfg.ResetDelay) {
			return
		}
		// an admin reset during the delay already opened the next round
		if e.superseded(res.RoundID) {
			continue
		}
		if _, err := e.state.ResetRound(); err != nil {
			logger.Error("auto reset failed, auction engine halted", "error", err)
			return
		}
	}
}

// holdPrice sleeps until the displayed price is due for a tick. The deadline
// is re-read after every wake-up because a reset may have moved it.
func (e *Engine) holdPrice(ctx context.Context) bool {
	for {
		wait := e.untilDue()
		if wait <= 0 {
			return ctx.Err() == nil
		}
		if !e.sleep(ctx, wait) {
			return false
		}
	}
}

// superseded reports whether a round other than ended is now running.
func (e *Engine) superseded(ended uint64) bool {
	view, err := e.state.Snapshot()
	if err != nil {
		return false
	}
	return view.Running || view.RoundID != ended
}

// untilDue is how long the displayed price still has to be held.
func (e *Engine) untilDue() time.Duration {
	view, err := e.state.Snapshot()
	if err != nil || !view.Running {
		return 0
	}
	wait := view.LastTickAt.Add(view.Lot.TickInterval).Sub(e.now())
	if wait < 0 {
		return 0
	}
	return wait
}

// Tick runs one step of the round: every agent looks at the displayed price,
// a willing agent settles the round, otherwise the price drops one step and
// the round expires at the floor.
func (e *Engine) Tick(ctx context.Context) (TickResult, error) {
	view, err := e.state.Snapshot()
	if err != nil {
		if errors.Is(err, apperrors.NotRunning) {
			return TickResult{Ended: true}, nil
		}
		return TickResult{}, err
	}
	res := TickResult{
		RoundID:      view.RoundID,
		Price:        view.CurrentPrice,
		TickInterval: view.Lot.TickInterval,
	}
	if !view.Running {
		res.Ended = true
		res.Outcome = view.Outcome
		res.WinnerID = view.WinnerID
		return res, nil
	}

	balances, err := e.state.Balances()
	if err != nil {
		return res, err
	}

	var cands []Candidate
	for _, agent := range e.registry.Agents() {
		if e.willBuy(agent, view, balances[agent.Bidder.ID]) {
			cands = append(cands, Candidate{
				Bidder: agent.Bidder,
				Weight: strategy.PreferenceWeight(agent.Bidder.PreferredCategories, view.Lot.Categories),
			})
		}
	}

	if winner, ok := e.selector.Select(cands, e.rng); ok {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		settled, err := e.state.Settle(SettleRequest{
			RoundID:  view.RoundID,
			BidderID: winner.Bidder.ID,
			Outcome:  model.OutcomeSold,
			Source:   "engine",
		})
		switch {
		case err == nil:
			res.Ended = true
			res.Outcome = settled.Outcome
			res.WinnerID = settled.WinnerID
			return res, nil
		case errors.Is(err, apperrors.AlreadySettled):
			res.Ended = true
			return res, nil
		case errors.Is(err, apperrors.StateCorrupted):
			return res, err
		default:
			// the winner could not pay after all; the round goes on
			logger.Warn("agent settle rejected", "bidder_id", winner.Bidder.ID, "round_id", view.RoundID, "error", err)
		}
	}

	floor := view.Lot.FloorPrice
	next := decimal.Max(floor, view.CurrentPrice.Sub(view.Lot.PriceStep))
	if err := ctx.Err(); err != nil {
		return res, err
	}
	applied, err := e.state.SetPrice(view.RoundID, next)
	if err != nil {
		return res, err
	}
	metrics.TicksTotal.Inc()
	if !applied {
		// the round changed under us; the next tick sees the new state
		return res, nil
	}
	res.Price = next

	if next.Equal(floor) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		_, err := e.state.Settle(SettleRequest{
			RoundID: view.RoundID,
			Outcome: model.OutcomeExpired,
			Source:  "engine",
		})
		if err != nil && !errors.Is(err, apperrors.AlreadySettled) {
			return res, err
		}
		res.Ended = true
		if err == nil {
			res.Outcome = model.OutcomeExpired
		}
	}
	return res, nil
}

// willBuy evaluates one agent. A failing or panicking policy only loses this
// agent its turn.
func (e *Engine) willBuy(agent Agent, view model.RoundView, balance decimal.Decimal) (buy bool) {
	defer func() {
		if r := recover(); r != nil {
			metrics.PolicyErrors.WithLabelValues(string(agent.Policy.Name())).Inc()
			logger.Error("bidder policy panicked", "bidder_id", agent.Bidder.ID, "panic", fmt.Sprint(r))
			buy = false
		}
	}()
	ok, err := strategy.Evaluate(agent.Policy, strategy.Input{
		Lot:       view.Lot,
		Price:     view.CurrentPrice,
		Balance:   balance,
		Preferred: agent.Bidder.PreferredCategories,
	}, e.rng)
	if err != nil {
		metrics.PolicyErrors.WithLabelValues(string(agent.Policy.Name())).Inc()
		logger.Warn("bidder policy failed", "bidder_id", agent.Bidder.ID, "error", err)
		return false
	}
	return ok
}

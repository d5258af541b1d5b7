package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/GoPolymarket/dutchauction/internal/model"
	"github.com/GoPolymarket/dutchauction/internal/pkg/apperrors"
	"github.com/GoPolymarket/dutchauction/internal/pkg/metrics"
	"github.com/shopspring/decimal"
)

// DealQuery is the read side of the deal recorder.
type DealQuery interface {
	Recent(ctx context.Context, filter model.DealFilter) ([]model.Deal, error)
}

// AuctionService is the narrow surface the transports talk to.
type AuctionService struct {
	state    *RoundStateManager
	engine   *Engine
	registry *BidderRegistry
	deals    DealQuery
}

func NewAuctionService(state *RoundStateManager, engine *Engine, registry *BidderRegistry, deals DealQuery) *AuctionService {
	return &AuctionService{
		state:    state,
		engine:   engine,
		registry: registry,
		deals:    deals,
	}
}

func (s *AuctionService) GetState() (model.RoundView, error) {
	return s.state.Snapshot()
}

// HumanBuy settles the running round for the human bidder at the displayed
// price. roundID pins the round the player saw; 0 takes the current one.
// Losing the race to an agent yields ALREADY_SETTLED.
func (s *AuctionService) HumanBuy(ctx context.Context, bidderID string, roundID uint64) (model.RoundView, error) {
	view, err := s.humanBuy(ctx, bidderID, roundID)
	metrics.HumanActions.WithLabelValues(model.ActionBuy, resultLabel(err)).Inc()
	return view, err
}

func (s *AuctionService) humanBuy(ctx context.Context, bidderID string, roundID uint64) (model.RoundView, error) {
	if !s.registry.IsHuman(bidderID) {
		return model.RoundView{}, apperrors.NewUnknownBidder(bidderID)
	}
	if err := ctx.Err(); err != nil {
		return model.RoundView{}, err
	}

	view, err := s.state.Snapshot()
	if err != nil {
		return model.RoundView{}, err
	}
	if roundID != 0 && (roundID != view.RoundID || !view.Running) {
		return model.RoundView{}, apperrors.New(apperrors.ErrAlreadySettled,
			fmt.Sprintf("round %d is over", roundID), nil)
	}
	if !view.Running {
		return model.RoundView{}, apperrors.New(apperrors.ErrNotRunning,
			fmt.Sprintf("round %d already ended", view.RoundID), nil)
	}

	// Settle re-checks the balance under the lock; this only gives a better
	// message before racing.
	balance, err := s.state.Balance(bidderID)
	if err != nil {
		return model.RoundView{}, err
	}
	if balance.LessThan(view.CurrentPrice) {
		return model.RoundView{}, apperrors.New(apperrors.ErrInsufficientBalance,
			fmt.Sprintf("balance %s is below price %s", balance, view.CurrentPrice), nil)
	}

	return s.state.Settle(SettleRequest{
		RoundID:  view.RoundID,
		BidderID: bidderID,
		Outcome:  model.OutcomeSold,
		Source:   "human",
	})
}

// HumanWait records that the player passed on this tick. It only validates the
// bidder; the engine keeps lowering the price.
func (s *AuctionService) HumanWait(bidderID string) (model.RoundView, error) {
	if !s.registry.IsHuman(bidderID) {
		metrics.HumanActions.WithLabelValues(model.ActionWait, resultLabel(apperrors.UnknownBidder)).Inc()
		return model.RoundView{}, apperrors.NewUnknownBidder(bidderID)
	}
	view, err := s.state.Snapshot()
	metrics.HumanActions.WithLabelValues(model.ActionWait, resultLabel(err)).Inc()
	return view, err
}

// ResetRound force-opens a new round and makes sure the engine is driving it.
func (s *AuctionService) ResetRound() (model.RoundView, error) {
	view, err := s.state.ResetRound()
	if err != nil {
		return view, err
	}
	if s.engine != nil && !s.engine.Running() {
		if err := s.engine.Start(); err != nil {
			return view, err
		}
	}
	return view, nil
}

func (s *AuctionService) Start() error {
	if s.engine == nil {
		return errors.New("auction engine is not configured")
	}
	return s.engine.Start()
}

func (s *AuctionService) Stop() {
	if s.engine != nil {
		s.engine.Stop()
	}
}

func (s *AuctionService) EngineRunning() bool {
	return s.engine != nil && s.engine.Running()
}

func (s *AuctionService) GetBalances() (map[string]decimal.Decimal, error) {
	return s.state.Balances()
}

func (s *AuctionService) AdjustBalance(bidderID string, delta decimal.Decimal) (decimal.Decimal, error) {
	return s.state.AdjustBalance(bidderID, delta)
}

// GetRecentDeals returns deals newest first.
func (s *AuctionService) GetRecentDeals(ctx context.Context, filter model.DealFilter) ([]model.Deal, error) {
	if s.deals == nil {
		return []model.Deal{}, nil
	}
	return s.deals.Recent(ctx, filter)
}

// Bidders returns the roster joined with live balances.
func (s *AuctionService) Bidders() ([]model.BidderView, error) {
	balances, err := s.state.Balances()
	if err != nil {
		return nil, err
	}
	bidders := s.registry.List()
	out := make([]model.BidderView, 0, len(bidders))
	for _, b := range bidders {
		out = append(out, model.BidderView{
			ID:       b.ID,
			Name:     b.Name,
			Human:    b.Human,
			Strategy: b.Strategy,
			Balance:  balances[b.ID],
		})
	}
	return out, nil
}

func (s *AuctionService) Lots() []model.Lot {
	return s.state.Catalog().All()
}

func (s *AuctionService) HumanBidderID() string {
	return s.registry.HumanID()
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return string(apperrors.TypeOf(err))
}

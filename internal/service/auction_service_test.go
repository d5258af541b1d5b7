package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/GoPolymarket/dutchauction/internal/model"
	"github.com/GoPolymarket/dutchauction/internal/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, humanBalance int64) (*AuctionService, *harness) {
	t.Helper()
	lot := scenarioLot("tulips")
	lot.TickInterval = time.Hour
	h := newHarness(t, []model.Lot{lot},
		[]model.Bidder{human(humanBalance), sniper("bot", 100, 5000)}, EngineConfig{})
	deals, err := NewDealService("", 10, nil)
	require.NoError(t, err)
	t.Cleanup(deals.Close)
	h.state.deals = deals
	svc := NewAuctionService(h.state, h.engine, h.registry, deals)
	t.Cleanup(svc.Stop)
	return svc, h
}

func TestHumanBuySuccess(t *testing.T) {
	svc, _ := newTestService(t, 5000)
	view, err := svc.ResetRound()
	require.NoError(t, err)

	settled, err := svc.HumanBuy(context.Background(), "human", view.RoundID)
	require.NoError(t, err)
	assert.Equal(t, "human", settled.WinnerID)
	assert.True(t, settled.SettlePrice.Equal(dec(1000)))

	balances, err := svc.GetBalances()
	require.NoError(t, err)
	assert.True(t, balances["human"].Equal(dec(4000)))

	deals, err := svc.GetRecentDeals(context.Background(), model.DealFilter{Limit: 5})
	require.NoError(t, err)
	require.Len(t, deals, 1)
	assert.Equal(t, view.RoundID, deals[0].RoundID)
}

func TestHumanBuyInsufficientBalanceKeepsRound(t *testing.T) {
	svc, _ := newTestService(t, 999)
	_, err := svc.ResetRound()
	require.NoError(t, err)

	_, err = svc.HumanBuy(context.Background(), "human", 0)
	assert.True(t, errors.Is(err, apperrors.InsufficientBalance))

	state, err := svc.GetState()
	require.NoError(t, err)
	assert.True(t, state.Running)
	assert.Equal(t, model.OutcomePending, state.Outcome)
}

func TestHumanBuyErrors(t *testing.T) {
	svc, h := newTestService(t, 5000)

	_, err := svc.HumanBuy(context.Background(), "human", 0)
	assert.True(t, errors.Is(err, apperrors.NotRunning), "no round yet")

	_, err = svc.HumanBuy(context.Background(), "ghost", 0)
	assert.True(t, errors.Is(err, apperrors.UnknownBidder))

	_, err = svc.HumanBuy(context.Background(), "bot", 0)
	assert.True(t, errors.Is(err, apperrors.UnknownBidder), "agents cannot act as the human")

	first, _ := svc.ResetRound()
	second, _ := h.state.ResetRound()
	_, err = svc.HumanBuy(context.Background(), "human", first.RoundID)
	assert.True(t, errors.Is(err, apperrors.AlreadySettled), "stale round id")

	_, err = h.state.Settle(SettleRequest{RoundID: second.RoundID, Outcome: model.OutcomeExpired})
	require.NoError(t, err)
	_, err = svc.HumanBuy(context.Background(), "human", second.RoundID)
	assert.True(t, errors.Is(err, apperrors.AlreadySettled), "pinned round already ended")
	_, err = svc.HumanBuy(context.Background(), "human", 0)
	assert.True(t, errors.Is(err, apperrors.NotRunning))
	assert.Equal(t, "Too slow: the auction already ended. Wait for the next round.",
		apperrors.Wrap(err).Suggestion)
}

func TestHumanWait(t *testing.T) {
	svc, _ := newTestService(t, 5000)
	_, _ = svc.ResetRound()

	view, err := svc.HumanWait("human")
	require.NoError(t, err)
	assert.True(t, view.Running)

	_, err = svc.HumanWait("bot")
	assert.True(t, errors.Is(err, apperrors.UnknownBidder))
}

func TestResetRoundStartsEngine(t *testing.T) {
	svc, _ := newTestService(t, 5000)
	assert.False(t, svc.EngineRunning())

	_, err := svc.ResetRound()
	require.NoError(t, err)
	assert.True(t, svc.EngineRunning())

	svc.Stop()
	assert.False(t, svc.EngineRunning())
}

func TestBiddersJoinLiveBalances(t *testing.T) {
	svc, _ := newTestService(t, 5000)
	_, err := svc.AdjustBalance("bot", dec(-1000))
	require.NoError(t, err)

	views, err := svc.Bidders()
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "human", views[0].ID)
	assert.True(t, views[0].Human)
	assert.True(t, views[1].Balance.Equal(dec(4000)))

	assert.Len(t, svc.Lots(), 1)
	assert.Equal(t, "human", svc.HumanBidderID())
}

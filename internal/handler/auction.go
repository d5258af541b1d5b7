package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/GoPolymarket/dutchauction/internal/middleware"
	"github.com/GoPolymarket/dutchauction/internal/model"
	"github.com/GoPolymarket/dutchauction/internal/pkg/apperrors"
	"github.com/GoPolymarket/dutchauction/internal/service"
	"github.com/gin-gonic/gin"
)

type AuctionHandler struct {
	svc *service.AuctionService
}

func NewAuctionHandler(svc *service.AuctionService) *AuctionHandler {
	return &AuctionHandler{svc: svc}
}

func (h *AuctionHandler) GetState(c *gin.Context) {
	view, err := h.svc.GetState()
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// HumanAction handles both buy and wait for the bidder resolved by
// BidderMiddleware.
func (h *AuctionHandler) HumanAction(c *gin.Context) {
	var req model.HumanActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	bidderID := middleware.BidderID(c)

	switch req.Action {
	case model.ActionBuy:
		view, err := h.svc.HumanBuy(c.Request.Context(), bidderID, req.RoundID)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, model.HumanActionResponse{
			Status:      "success",
			Message:     fmt.Sprintf("You bought %s for %s", view.Lot.Name, view.SettlePrice.StringFixed(2)),
			RoundID:     view.RoundID,
			SettlePrice: view.SettlePrice,
		})
	case model.ActionWait:
		view, err := h.svc.HumanWait(bidderID)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, model.HumanActionResponse{
			Status:  "success",
			Message: "Waiting for a lower price",
			RoundID: view.RoundID,
		})
	default:
		c.Error(apperrors.NewInvalidRequest("action must be buy or wait"))
	}
}

func (h *AuctionHandler) GetBalances(c *gin.Context) {
	balances, err := h.svc.GetBalances()
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, balances)
}

// GetDeals serves recent deals, newest first.
// Query: limit, winner_id, from, to (RFC3339).
func (h *AuctionHandler) GetDeals(c *gin.Context) {
	filter, err := parseDealFilter(c)
	if err != nil {
		c.Error(err)
		return
	}
	deals, err := h.svc.GetRecentDeals(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deals": deals})
}

func (h *AuctionHandler) GetLots(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"lots": h.svc.Lots()})
}

func (h *AuctionHandler) GetBidders(c *gin.Context) {
	bidders, err := h.svc.Bidders()
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bidders": bidders, "human_bidder_id": h.svc.HumanBidderID()})
}

func parseDealFilter(c *gin.Context) (model.DealFilter, error) {
	filter := model.DealFilter{
		Limit:    100,
		WinnerID: c.Query("winner_id"),
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return filter, apperrors.NewInvalidRequest("limit must be a positive integer")
		}
		if limit > 1000 {
			limit = 1000
		}
		filter.Limit = limit
	}
	for name, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, apperrors.NewInvalidRequest(name + " must be RFC3339")
		}
		*dst = &t
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return filter, apperrors.NewInvalidRequest("to must not be before from")
	}
	return filter, nil
}

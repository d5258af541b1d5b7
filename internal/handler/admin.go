package handler

import (
	"net/http"

	"github.com/GoPolymarket/dutchauction/internal/model"
	"github.com/GoPolymarket/dutchauction/internal/pkg/apperrors"
	"github.com/GoPolymarket/dutchauction/internal/pkg/logger"
	"github.com/GoPolymarket/dutchauction/internal/service"
	"github.com/gin-gonic/gin"
)

// AdminHandler serves the operator routes. Callers mount it behind
// middleware.AdminMiddleware.
type AdminHandler struct {
	svc *service.AuctionService
}

func NewAdminHandler(svc *service.AuctionService) *AdminHandler {
	return &AdminHandler{svc: svc}
}

func (h *AdminHandler) Reset(c *gin.Context) {
	view, err := h.svc.ResetRound()
	if err != nil {
		c.Error(err)
		return
	}
	logger.Info("round reset by operator", "round_id", view.RoundID, "lot", view.Lot.Name)
	c.JSON(http.StatusOK, view)
}

func (h *AdminHandler) Start(c *gin.Context) {
	if err := h.svc.Start(); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"running": h.svc.EngineRunning()})
}

func (h *AdminHandler) Stop(c *gin.Context) {
	h.svc.Stop()
	c.JSON(http.StatusOK, gin.H{"running": h.svc.EngineRunning()})
}

// AdjustBalance applies a signed delta to one bidder. A delta that would
// leave the balance negative is rejected.
func (h *AdminHandler) AdjustBalance(c *gin.Context) {
	bidderID := c.Param("id")
	var req model.BalanceAdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	balance, err := h.svc.AdjustBalance(bidderID, req.Delta)
	if err != nil {
		c.Error(err)
		return
	}
	logger.Info("balance adjusted", "bidder_id", bidderID, "delta", req.Delta.String(), "balance", balance.String())
	c.JSON(http.StatusOK, model.BalanceResponse{BidderID: bidderID, Balance: balance})
}

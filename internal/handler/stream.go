package handler

import (
	"net/http"
	"time"

	"github.com/GoPolymarket/dutchauction/internal/model"
	"github.com/GoPolymarket/dutchauction/internal/pkg/logger"
	"github.com/GoPolymarket/dutchauction/internal/service"
	"github.com/gin-gonic/gin"
)

// Upgrader is the part of stream.Hub the handler needs.
type Upgrader interface {
	ServeWS(w http.ResponseWriter, r *http.Request, initial any) error
}

type StreamHandler struct {
	svc *service.AuctionService
	hub Upgrader
}

func NewStreamHandler(svc *service.AuctionService, hub Upgrader) *StreamHandler {
	return &StreamHandler{svc: svc, hub: hub}
}

// Serve upgrades to a websocket. The first frame is a snapshot of the current
// round so the client can render before the next event.
func (h *StreamHandler) Serve(c *gin.Context) {
	var initial any
	if view, err := h.svc.GetState(); err == nil {
		initial = model.RoundEvent{Type: model.EventSnapshot, Round: view, At: time.Now().UTC()}
	}
	if err := h.hub.ServeWS(c.Writer, c.Request, initial); err != nil {
		// the upgrader has already written the HTTP error
		logger.Warn("websocket upgrade failed", "error", err, "client_ip", c.ClientIP())
	}
}

package middleware

import (
	"github.com/GoPolymarket/dutchauction/internal/pkg/apperrors"
	"github.com/GoPolymarket/dutchauction/internal/service"
	"github.com/gin-gonic/gin"
)

const (
	HeaderBidderID   = "X-Bidder-ID"
	ContextBidderKey = "bidder_id"
)

// BidderMiddleware resolves the acting bidder. Without a header the request
// acts as the configured human bidder.
func BidderMiddleware(registry *service.BidderRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderBidderID)
		if id == "" {
			id = registry.HumanID()
		}
		if _, ok := registry.Get(id); !ok {
			c.Error(apperrors.NewUnknownBidder(id))
			c.Abort()
			return
		}
		c.Set(ContextBidderKey, id)
		c.Next()
	}
}

// BidderID returns the bidder resolved by BidderMiddleware.
func BidderID(c *gin.Context) string {
	return c.GetString(ContextBidderKey)
}

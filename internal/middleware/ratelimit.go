package middleware

import (
	"github.com/GoPolymarket/dutchauction/internal/pkg/apperrors"
	"github.com/GoPolymarket/dutchauction/internal/service"
	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware throttles each bidder separately. It must run after
// BidderMiddleware.
func RateLimitMiddleware(registry *service.BidderRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		limiter := registry.GetLimiter(BidderID(c))
		if limiter == nil {
			c.Next()
			return
		}
		if !limiter.Allow() {
			c.Header("Retry-After", "1")
			c.Error(apperrors.New(apperrors.ErrRateLimited, "rate limit exceeded", nil))
			c.Abort()
			return
		}
		c.Next()
	}
}

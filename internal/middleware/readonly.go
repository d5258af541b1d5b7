package middleware

import (
	"net/http"
	"strings"

	"github.com/GoPolymarket/dutchauction/internal/pkg/apperrors"
	"github.com/gin-gonic/gin"
)

// ReadOnlyMiddleware rejects player writes while maintenance is on. Admin
// routes stay open so an operator can still reset or stop the engine.
func ReadOnlyMiddleware(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled || strings.HasPrefix(c.Request.URL.Path, "/v1/admin/") {
			c.Next()
			return
		}

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
		default:
			c.Error(apperrors.New(apperrors.ErrReadOnly, "read-only mode enabled", nil))
			c.Abort()
		}
	}
}

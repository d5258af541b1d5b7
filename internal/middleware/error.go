package middleware

import (
	"context"
	"errors"

	"github.com/GoPolymarket/dutchauction/internal/pkg/apperrors"
	"github.com/GoPolymarket/dutchauction/internal/pkg/logger"
	"github.com/gin-gonic/gin"
)

type errorBody struct {
	*apperrors.AppError
	RequestID string `json:"request_id,omitempty"`
}

// ErrorHandler renders the last error attached with c.Error. Domain errors
// keep their code; anything else becomes INTERNAL_ERROR.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		var appErr *apperrors.AppError
		switch {
		case errors.As(err, &appErr):
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			appErr = apperrors.New(apperrors.ErrInternal, "request cancelled", err)
		default:
			appErr = apperrors.New(apperrors.ErrInternal, err.Error(), err)
		}
		if appErr.HTTPStatus == 0 {
			appErr = apperrors.New(appErr.Type, appErr.Message, appErr.Cause)
		}

		logFields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"code", appErr.Type,
			"client_ip", c.ClientIP(),
			"bidder_id", BidderID(c),
		}
		if appErr.HTTPStatus >= 500 {
			logger.LogError(c.Request.Context(), appErr, "request failed", logFields...)
		} else {
			logger.Warn(appErr.Message, logFields...)
		}

		c.JSON(appErr.HTTPStatus, errorBody{AppError: appErr, RequestID: RequestID(c)})
	}
}

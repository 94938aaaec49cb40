package middleware

import (
	"shopdesk-realtime/internal/transport/httpdto"
	shopdesk_errors "shopdesk-realtime/pkg/errors"
	"shopdesk-realtime/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ErrorHandler renders errors handlers attached with c.Error when they
// have not written a response themselves.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status := shopdesk_errors.HTTPStatus(err)
		if l != nil && status >= 500 {
			l.Errorf("request error: %s", err.Error())
		}
		if c.Writer.Written() {
			return
		}
		_, body := httpdto.ErrorFrom(err)
		c.JSON(status, body)
	}
}

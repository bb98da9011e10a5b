package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"scsc-homepage/backend/pkg/response"
)

// BodyLimit 请求体大小上限，maxBytes <= 0 时不限制
// 需大于银行 CSV 上传上限，否则批量核对拿不到 22002 而是 10005
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}

		c.Next()

		if c.IsAborted() || c.Writer.Written() {
			return
		}
		var tooLarge *http.MaxBytesError
		for _, err := range c.Errors {
			if errors.As(err.Err, &tooLarge) {
				response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
				return
			}
		}
	}
}

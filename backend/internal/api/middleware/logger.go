package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	applogger "scsc-homepage/backend/pkg/logger"
)

// 探活与指标抓取不记访问日志
var quietPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// Logger 访问日志中间件
// 需注册在 RequestID 之后，以便沿用带 request_id 的请求级 logger
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		if _, quiet := quietPaths[path]; quiet && c.Writer.Status() < 400 {
			return
		}

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.String("path", path),
			zap.String("ip", c.ClientIP()),
			zap.Int("bytes", c.Writer.Size()),
			zap.Duration("latency", time.Since(start)),
		}
		if uid := c.GetString("user_id"); uid != "" {
			fields = append(fields, zap.String("user_id", uid))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.ByType(gin.ErrorTypePrivate).String()))
		}

		log := applogger.FromContext(c.Request.Context(), logger)
		switch {
		case status >= 500:
			log.Error("请求处理失败", fields...)
		case status >= 400:
			log.Warn("客户端错误", fields...)
		default:
			log.Info("请求完成", fields...)
		}
	}
}

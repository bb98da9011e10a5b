package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"scsc-homepage/backend/config"
	"scsc-homepage/backend/internal/api/handler"
	"scsc-homepage/backend/internal/api/middleware"
	"scsc-homepage/backend/internal/model"
	"scsc-homepage/backend/pkg/jwt"
	"scsc-homepage/backend/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 可为 nil，此时不限流
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 健康检查与指标 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr))
	v1.Use(middleware.RateLimit(rdb, 60, time.Minute))
	{
		// 全局状态
		v1.GET("/global-status", h.GlobalStatus.GetGlobalStatus)
		v1.PUT("/global-status", middleware.RoleAtLeast(model.RolePresident), h.GlobalStatus.UpdateGlobalStatus)

		// 入金核对
		deposits := v1.Group("/deposits")
		deposits.Use(middleware.RoleAtLeast(model.RoleExecutive))
		{
			deposits.POST("/check", h.Deposit.CheckDeposit)
			deposits.POST("/batch", h.Deposit.BatchCheck)
			deposits.GET("/standby", h.Deposit.ListStandby)
		}

		// 数据库备份
		backups := v1.Group("/backups")
		{
			backups.GET("", middleware.RoleAtLeast(model.RoleExecutive), h.Backup.ListBackups)
			backups.POST("", middleware.RoleAtLeast(model.RolePresident), h.Backup.CreateBackup)
		}
	}

	return r
}

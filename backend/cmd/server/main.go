package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"scsc-homepage/backend/config"
	"scsc-homepage/backend/internal/api/handler"
	"scsc-homepage/backend/internal/api/router"
	"scsc-homepage/backend/internal/model"
	"scsc-homepage/backend/internal/repository"
	"scsc-homepage/backend/internal/service"
	"scsc-homepage/backend/pkg/database"
	"scsc-homepage/backend/pkg/jwt"
	applogger "scsc-homepage/backend/pkg/logger"
	"scsc-homepage/backend/pkg/mq"
	"scsc-homepage/backend/pkg/redis"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
	)

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	repo := repository.NewRepository(db)

	// 3.2 首次启动时写入全局状态
	initial := &model.GlobalStatus{
		Status:   model.StatusInactive,
		Year:     time.Now().Year(),
		Semester: 1,
	}
	if err := repo.GlobalStatus.Ensure(context.Background(), initial); err != nil {
		logger.Fatal("初始化全局状态失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：连接失败时降级为进程内互斥且不限流）
	var (
		rdb    *redis.Client
		locker service.DistributedLocker
	)
	rdb, err = redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，状态切换仅做进程内互斥", zap.Error(err))
		rdb = nil
	} else {
		locker = rdb
	}

	// 5. 初始化 JWT 管理器
	jwtMgr := jwt.NewManager(&cfg.Auth)

	// 6. 连接消息队列（Discord Bot）
	mqClient := mq.NewClient(&cfg.MQ, logger, mq.WithMetrics(mq.NewMetrics(prometheus.DefaultRegisterer)))
	connectCtx, cancelConnect := context.WithTimeout(context.Background(), time.Minute)
	err = mqClient.Connect(connectCtx)
	cancelConnect()
	if err != nil {
		logger.Fatal("消息队列连接失败", zap.Error(err))
	}

	// 7. 依赖注入: Repository → Service → Handler
	svc := service.NewService(cfg, repo, service.Deps{Bot: mqClient, Locker: locker}, logger)
	h := handler.NewHandler(svc)

	backupCron, err := svc.Backup.StartSchedule(cfg.Backup.Cron)
	if err != nil {
		logger.Fatal("启动定时备份失败", zap.Error(err))
	}

	// 8. 初始化路由
	engine := router.Setup(cfg, h, jwtMgr, rdb, logger)

	// 9. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 10. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	if backupCron != nil {
		<-backupCron.Stop().Done()
	}

	if err := mqClient.Close(); err != nil {
		logger.Error("消息队列关闭异常", zap.Error(err))
	}

	// 关闭数据库连接
	closeDB, _ := db.DB()
	if closeDB != nil {
		closeDB.Close()
	}

	// 关闭 Redis 连接
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}

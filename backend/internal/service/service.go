package service

import (
	"go.uber.org/zap"

	"scsc-homepage/backend/config"
	"scsc-homepage/backend/internal/repository"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Lifecycle LifecycleService
	Deposit   DepositService
	Backup    BackupService
}

// Deps 业务层依赖的外部能力
// Locker 为 nil 时状态切换只做进程内互斥
type Deps struct {
	Bot    BotClient
	Locker DistributedLocker
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	deps Deps,
	logger *zap.Logger,
) *Service {
	guard := NewTransitionGuard(deps.Locker, cfg.Lifecycle.LockTTL, logger.Named("guard"))
	backup := NewBackupService(cfg, repo, logger)
	bot := NewBotGateway(deps.Bot, cfg.MQ.DefaultTimeout, logger)

	return &Service{
		Lifecycle: NewLifecycleService(repo, bot, backup, guard, logger),
		Deposit:   NewDepositService(repo, guard, cfg.Enrollment, logger),
		Backup:    backup,
	}
}

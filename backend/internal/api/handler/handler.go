package handler

import "scsc-homepage/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	GlobalStatus *GlobalStatusHandler
	Deposit      *DepositHandler
	Backup       *BackupHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		GlobalStatus: NewGlobalStatusHandler(svc.Lifecycle),
		Deposit:      NewDepositHandler(svc.Deposit),
		Backup:       NewBackupHandler(svc.Backup),
	}
}

package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"scsc-homepage/backend/internal/service"
	"scsc-homepage/backend/pkg/response"
)

// BackupHandler 数据库备份 HTTP 处理器
type BackupHandler struct {
	backupSvc service.BackupService
}

// NewBackupHandler 创建 BackupHandler
func NewBackupHandler(backupSvc service.BackupService) *BackupHandler {
	return &BackupHandler{backupSvc: backupSvc}
}

// ListBackups 最近的备份记录
// GET /api/v1/backups?limit=20
func (h *BackupHandler) ListBackups(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	list, err := h.backupSvc.ListRecent(c.Request.Context(), limit)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// CreateBackup 手动触发一次备份
// POST /api/v1/backups
func (h *BackupHandler) CreateBackup(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	path, err := h.backupSvc.Backup(c.Request.Context(), "manual-"+callerID)
	if err != nil {
		if errors.Is(err, service.ErrBackupFailed) {
			response.InternalErrorWithDetails(c, 23001, "数据库备份失败", "")
			return
		}
		response.InternalError(c)
		return
	}

	response.OK(c, gin.H{"path": path})
}

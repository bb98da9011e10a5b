package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"scsc-homepage/backend/internal/dto"
	"scsc-homepage/backend/internal/service"
	"scsc-homepage/backend/pkg/response"
)

// GlobalStatusHandler 全局状态（学期生命周期）HTTP 处理器
type GlobalStatusHandler struct {
	lifecycleSvc service.LifecycleService
}

// NewGlobalStatusHandler 创建 GlobalStatusHandler
func NewGlobalStatusHandler(lifecycleSvc service.LifecycleService) *GlobalStatusHandler {
	return &GlobalStatusHandler{lifecycleSvc: lifecycleSvc}
}

// GetGlobalStatus 获取当前全局状态
// GET /api/v1/global-status
func (h *GlobalStatusHandler) GetGlobalStatus(c *gin.Context) {
	status, err := h.lifecycleSvc.GetGlobalStatus(c.Request.Context())
	if err != nil {
		h.handleGlobalStatusError(c, err)
		return
	}

	response.OK(c, status)
}

// UpdateGlobalStatus 切换全局状态
// PUT /api/v1/global-status
func (h *GlobalStatusHandler) UpdateGlobalStatus(c *gin.Context) {
	var req dto.UpdateGlobalStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.lifecycleSvc.UpdateGlobalStatus(c.Request.Context(), callerID, req.Status)
	if err != nil {
		h.handleGlobalStatusError(c, err)
		return
	}

	response.OK(c, result)
}

// handleGlobalStatusError 统一处理全局状态模块业务错误
func (h *GlobalStatusHandler) handleGlobalStatusError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidTransition):
		response.ErrorWithDetails(c, http.StatusBadRequest, 21001, "无效的状态切换", err.Error())
	case errors.Is(err, service.ErrTransitionInProgress):
		response.Conflict(c, 21002, "已有状态切换正在进行")
	case errors.Is(err, service.ErrReconciliationInProgress):
		response.Conflict(c, 21007, "入金核对进行中，请稍后再切换")
	case errors.Is(err, service.ErrTransitionPrecondition):
		response.PreconditionFailed(c, 21003, "状态切换前置条件未满足", err.Error())
	case errors.Is(err, service.ErrBackupFailed):
		response.InternalErrorWithDetails(c, 21004, "数据库备份失败，状态未改变", "")
	case errors.Is(err, service.ErrBotUnavailable):
		response.ServiceUnavailable(c, 21005, "Bot 服务不可用，状态未改变")
	case errors.Is(err, service.ErrGlobalStatusNotFound):
		response.NotFound(c, 21006, "全局状态未初始化")
	default:
		response.InternalError(c)
	}
}

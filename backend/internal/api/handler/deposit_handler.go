package handler

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"scsc-homepage/backend/internal/dto"
	"scsc-homepage/backend/internal/service"
	"scsc-homepage/backend/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DepositHandler 入金核对 HTTP 处理器
// 业务上的不匹配以结果码放在 200 响应中返回
type DepositHandler struct {
	depositSvc service.DepositService
}

// NewDepositHandler 创建 DepositHandler
func NewDepositHandler(depositSvc service.DepositService) *DepositHandler {
	return &DepositHandler{depositSvc: depositSvc}
}

// CheckDeposit 核对单条入金记录
// POST /api/v1/deposits/check
func (h *DepositHandler) CheckDeposit(c *gin.Context) {
	var req dto.DepositRecord
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result := h.depositSvc.Check(c.Request.Context(), req)
	response.OK(c, result)
}

// BatchCheck 上传银行导出 CSV 批量核对
// POST /api/v1/deposits/batch[?format=xlsx]
func (h *DepositHandler) BatchCheck(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, 22001, "请上传 CSV 文件")
		return
	}
	if fh.Size > service.MaxBankCSVBytes {
		response.TooLarge(c, 22002, "CSV 文件超过 5MB")
		return
	}

	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, 22001, "无法读取上传的文件")
		return
	}
	defer f.Close()

	batch, err := h.depositSvc.BatchCheck(c.Request.Context(), f)
	if err != nil {
		h.handleDepositError(c, err)
		return
	}

	if c.Query("format") != "xlsx" {
		response.OK(c, batch)
		return
	}

	var buf bytes.Buffer
	if err := h.depositSvc.ExportResults(batch, &buf); err != nil {
		h.handleDepositError(c, err)
		return
	}

	filename := fmt.Sprintf("入金核对_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// ListStandby 待核对的入会申请
// GET /api/v1/deposits/standby
func (h *DepositHandler) ListStandby(c *gin.Context) {
	list, err := h.depositSvc.ListStandby(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, gin.H{"list": list})
}

func (h *DepositHandler) handleDepositError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCSVTooLarge):
		response.TooLarge(c, 22002, "CSV 文件超过 5MB")
	case errors.Is(err, service.ErrCSVTooManyRows):
		response.TooLarge(c, 22003, "CSV 行数超过上限")
	case errors.Is(err, service.ErrCSVMissingColumns):
		response.ErrorWithDetails(c, http.StatusBadRequest, 22004, "CSV 缺少必需的列", err.Error())
	case errors.Is(err, service.ErrCSVMalformed):
		response.ErrorWithDetails(c, http.StatusBadRequest, 22005, "CSV 格式无效", err.Error())
	case errors.Is(err, service.ErrDepositExportFailed):
		response.InternalErrorWithDetails(c, 22006, "生成核对结果 Excel 失败", "")
	default:
		response.InternalError(c)
	}
}

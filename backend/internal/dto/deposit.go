package dto

import "time"

// ── 入金核对模块 ──

// DepositRecord 一条银行入金记录（不落库）
// DepositTime 必须为 UTC
type DepositRecord struct {
	Amount      int64     `json:"amount"       binding:"required"`
	DepositTime time.Time `json:"deposit_time" binding:"required"`
	DepositName string    `json:"deposit_name" binding:"required"`
}

// DepositUser 核对过程中命中的候选用户
type DepositUser struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   int    `json:"role"`
	Status string `json:"status"`
}

// DepositResult 单条核对结果；业务失败也以结果码表达
type DepositResult struct {
	ResultCode int           `json:"result_code"`
	ResultMsg  string        `json:"result_msg"`
	Record     DepositRecord `json:"record"`
	Users      []DepositUser `json:"users"`
	Row        int           `json:"row,omitempty"` // 批量导入时对应的 CSV 行号
}

// BatchDepositResponse 批量核对汇总
type BatchDepositResponse struct {
	Success int             `json:"success"`
	Failure int             `json:"failure"`
	Results []DepositResult `json:"results"`
}

// StandbyResponse 待核对申请
type StandbyResponse struct {
	ID          int64  `json:"id"`
	UserID      string `json:"user_id"`
	UserName    string `json:"user_name"`
	DepositName string `json:"deposit_name"`
	CreatedAt   string `json:"created_at"`
}

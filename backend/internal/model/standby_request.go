package model

import "time"

// StandbyRequest 待确认入金的入会申请 — 对应 standby_requests
// DepositName 为 姓名 + 手机号末两位
type StandbyRequest struct {
	ID          int64      `gorm:"primaryKey"                         json:"id"`
	UserID      string     `gorm:"type:varchar(64);not null"          json:"user_id"`
	UserName    string     `gorm:"type:varchar(100);not null;index"   json:"user_name"`
	DepositName string     `gorm:"type:varchar(100);not null;index"   json:"deposit_name"`
	IsChecked   bool       `gorm:"not null;default:false"             json:"is_checked"`
	DepositTime *time.Time `json:"deposit_time,omitempty"`
	CreatedAt   time.Time  `gorm:"not null"                           json:"created_at"`
}

// TableName 指定表名
func (StandbyRequest) TableName() string { return "standby_requests" }

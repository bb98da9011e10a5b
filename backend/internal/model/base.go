package model

import "time"

// Timestamps 通用时间戳字段（业务模型嵌入）
type Timestamps struct {
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// ── 状态取值 ──
// 全局状态、兴趣小组状态共用同一组取值

const (
	StatusSurveying  = "surveying"
	StatusRecruiting = "recruiting"
	StatusActive     = "active"
	StatusInactive   = "inactive"
)

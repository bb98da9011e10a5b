package model

import "time"

// GlobalStatusID 单行表的固定主键
const GlobalStatusID = 1

// GlobalStatus 全局运营状态 — 对应 global_status（单行）
// 只由状态切换流程在事务内修改
type GlobalStatus struct {
	ID        int       `gorm:"primaryKey;autoIncrement:false"  json:"-"`
	Status    string    `gorm:"type:varchar(20);not null"       json:"status"`
	Year      int       `gorm:"not null"                        json:"year"`
	Semester  int       `gorm:"not null"                        json:"semester"`
	UpdatedAt time.Time `gorm:"not null"                        json:"updated_at"`
	UpdatedBy *string   `gorm:"type:varchar(64)"                json:"updated_by,omitempty"`
}

// TableName 指定表名
func (GlobalStatus) TableName() string { return "global_status" }

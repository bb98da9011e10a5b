package model

import "time"

// Enrollment 用户在某一学期的入会记录 — 对应 enrollments
// 入金核对成功时写入，学期切换时据此重算用户状态
type Enrollment struct {
	ID        int64     `gorm:"primaryKey"                                       json:"id"`
	UserID    string    `gorm:"type:varchar(64);not null;uniqueIndex:uniq_enrollment" json:"user_id"`
	Year      int       `gorm:"not null;uniqueIndex:uniq_enrollment"             json:"year"`
	Semester  int       `gorm:"not null;uniqueIndex:uniq_enrollment"             json:"semester"`
	CreatedAt time.Time `gorm:"not null"                                         json:"created_at"`
}

// TableName 指定表名
func (Enrollment) TableName() string { return "enrollments" }

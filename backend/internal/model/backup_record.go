package model

import "time"

// BackupRecord 数据库备份审计 — 对应 backup_records
type BackupRecord struct {
	ID        int64     `gorm:"primaryKey"                  json:"id"`
	Path      string    `gorm:"type:varchar(512);not null"  json:"path"`
	Reason    string    `gorm:"type:varchar(100);not null"  json:"reason"`
	SizeBytes int64     `gorm:"not null;default:0"          json:"size_bytes"`
	CreatedAt time.Time `gorm:"not null"                    json:"created_at"`
}

// TableName 指定表名
func (BackupRecord) TableName() string { return "backup_records" }

package repository

import (
	"context"

	"gorm.io/gorm"

	"scsc-homepage/backend/internal/model"
)

// BackupRecordRepository 备份审计数据访问接口
type BackupRecordRepository interface {
	Create(ctx context.Context, rec *model.BackupRecord) error
	ListRecent(ctx context.Context, limit int) ([]model.BackupRecord, error)
}

type backupRecordRepo struct {
	db *gorm.DB
}

// NewBackupRecordRepo 创建 BackupRecordRepository 实例
func NewBackupRecordRepo(db *gorm.DB) BackupRecordRepository {
	return &backupRecordRepo{db: db}
}

func (r *backupRecordRepo) Create(ctx context.Context, rec *model.BackupRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *backupRecordRepo) ListRecent(ctx context.Context, limit int) ([]model.BackupRecord, error) {
	var list []model.BackupRecord
	err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

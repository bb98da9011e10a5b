package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"scsc-homepage/backend/internal/model"
)

// StandbyRepository 入会待确认申请数据访问接口
type StandbyRepository interface {
	Create(ctx context.Context, req *model.StandbyRequest) error
	FindUncheckedByDepositName(ctx context.Context, depositName string) ([]model.StandbyRequest, error)
	FindUncheckedByUserName(ctx context.Context, userName string) ([]model.StandbyRequest, error)
	FindUncheckedByUserID(ctx context.Context, userID string) ([]model.StandbyRequest, error)
	ListUnchecked(ctx context.Context) ([]model.StandbyRequest, error)
	// MarkChecked 标记已核对，并记录实际入金名与入金时间
	MarkChecked(ctx context.Context, id int64, depositName string, depositTime time.Time) error
	DeleteAll(ctx context.Context) (int64, error)
}

type standbyRepo struct {
	db *gorm.DB
}

// NewStandbyRepo 创建 StandbyRepository 实例
func NewStandbyRepo(db *gorm.DB) StandbyRepository {
	return &standbyRepo{db: db}
}

func (r *standbyRepo) Create(ctx context.Context, req *model.StandbyRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *standbyRepo) FindUncheckedByDepositName(ctx context.Context, depositName string) ([]model.StandbyRequest, error) {
	var reqs []model.StandbyRequest
	err := r.db.WithContext(ctx).
		Where("deposit_name = ? AND is_checked = ?", depositName, false).
		Order("id").
		Find(&reqs).Error
	return reqs, err
}

func (r *standbyRepo) FindUncheckedByUserName(ctx context.Context, userName string) ([]model.StandbyRequest, error) {
	var reqs []model.StandbyRequest
	err := r.db.WithContext(ctx).
		Where("user_name = ? AND is_checked = ?", userName, false).
		Order("id").
		Find(&reqs).Error
	return reqs, err
}

func (r *standbyRepo) FindUncheckedByUserID(ctx context.Context, userID string) ([]model.StandbyRequest, error) {
	var reqs []model.StandbyRequest
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_checked = ?", userID, false).
		Order("id").
		Find(&reqs).Error
	return reqs, err
}

func (r *standbyRepo) ListUnchecked(ctx context.Context) ([]model.StandbyRequest, error) {
	var reqs []model.StandbyRequest
	err := r.db.WithContext(ctx).
		Where("is_checked = ?", false).
		Order("created_at, id").
		Find(&reqs).Error
	return reqs, err
}

func (r *standbyRepo) MarkChecked(ctx context.Context, id int64, depositName string, depositTime time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.StandbyRequest{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_checked":   true,
			"deposit_name": depositName,
			"deposit_time": depositTime,
		}).Error
}

func (r *standbyRepo) DeleteAll(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&model.StandbyRequest{})
	return res.RowsAffected, res.Error
}

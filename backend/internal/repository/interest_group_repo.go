package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"scsc-homepage/backend/internal/model"
)

// InterestGroupRepository 兴趣小组数据访问接口
type InterestGroupRepository interface {
	Create(ctx context.Context, group *model.InterestGroup) error
	GetByID(ctx context.Context, id int64) (*model.InterestGroup, error)
	// ListActivePeriod 指定学期内所有非 inactive 的小组
	ListActivePeriod(ctx context.Context, year, semester int) ([]model.InterestGroup, error)
	// SetStatusWhere 将状态为 from 的小组全部改为 to
	SetStatusWhere(ctx context.Context, from, to string) (int64, error)
	// Advance 延续到下一学期并重置为 recruiting
	Advance(ctx context.Context, id int64, year, semester int) error
	SetStatus(ctx context.Context, id int64, status string) error
}

type interestGroupRepo struct {
	db *gorm.DB
}

// NewInterestGroupRepo 创建 InterestGroupRepository 实例
func NewInterestGroupRepo(db *gorm.DB) InterestGroupRepository {
	return &interestGroupRepo{db: db}
}

func (r *interestGroupRepo) Create(ctx context.Context, group *model.InterestGroup) error {
	return r.db.WithContext(ctx).Create(group).Error
}

func (r *interestGroupRepo) GetByID(ctx context.Context, id int64) (*model.InterestGroup, error) {
	var group model.InterestGroup
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&group).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *interestGroupRepo) ListActivePeriod(ctx context.Context, year, semester int) ([]model.InterestGroup, error) {
	var groups []model.InterestGroup
	err := r.db.WithContext(ctx).
		Where("year = ? AND semester = ? AND status <> ?", year, semester, model.StatusInactive).
		Order("id").
		Find(&groups).Error
	return groups, err
}

func (r *interestGroupRepo) SetStatusWhere(ctx context.Context, from, to string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.InterestGroup{}).
		Where("status = ?", from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *interestGroupRepo) Advance(ctx context.Context, id int64, year, semester int) error {
	return r.db.WithContext(ctx).
		Model(&model.InterestGroup{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"year":       year,
			"semester":   semester,
			"status":     model.StatusRecruiting,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *interestGroupRepo) SetStatus(ctx context.Context, id int64, status string) error {
	return r.db.WithContext(ctx).
		Model(&model.InterestGroup{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UTC(),
		}).Error
}

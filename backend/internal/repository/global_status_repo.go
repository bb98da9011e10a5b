package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"scsc-homepage/backend/internal/model"
	pkgerrors "scsc-homepage/backend/pkg/errors"
)

// GlobalStatusRepository 全局状态数据访问接口
type GlobalStatusRepository interface {
	Get(ctx context.Context) (*model.GlobalStatus, error)
	// Ensure 单行不存在时以 initial 初始化，已存在时不修改
	Ensure(ctx context.Context, initial *model.GlobalStatus) error
	// CompareAndSwap 仅当当前行仍等于 current 时写入 next
	CompareAndSwap(ctx context.Context, current, next *model.GlobalStatus) error
}

type globalStatusRepo struct {
	db *gorm.DB
}

// NewGlobalStatusRepo 创建 GlobalStatusRepository 实例
func NewGlobalStatusRepo(db *gorm.DB) GlobalStatusRepository {
	return &globalStatusRepo{db: db}
}

func (r *globalStatusRepo) Get(ctx context.Context) (*model.GlobalStatus, error) {
	var gs model.GlobalStatus
	err := r.db.WithContext(ctx).
		Where("id = ?", model.GlobalStatusID).
		First(&gs).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrSingletonMissing
		}
		return nil, err
	}
	return &gs, nil
}

func (r *globalStatusRepo) Ensure(ctx context.Context, initial *model.GlobalStatus) error {
	initial.ID = model.GlobalStatusID
	if initial.UpdatedAt.IsZero() {
		initial.UpdatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(initial).Error
}

func (r *globalStatusRepo) CompareAndSwap(ctx context.Context, current, next *model.GlobalStatus) error {
	res := r.db.WithContext(ctx).
		Model(&model.GlobalStatus{}).
		Where("id = ? AND status = ? AND year = ? AND semester = ?",
			model.GlobalStatusID, current.Status, current.Year, current.Semester).
		Updates(map[string]interface{}{
			"status":     next.Status,
			"year":       next.Year,
			"semester":   next.Semester,
			"updated_at": next.UpdatedAt,
			"updated_by": next.UpdatedBy,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

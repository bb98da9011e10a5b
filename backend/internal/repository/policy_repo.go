package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"scsc-homepage/backend/internal/model"
)

// PolicyRepository 策略键值数据访问接口
type PolicyRepository interface {
	Get(ctx context.Context, key string) (*model.PolicyValue, error)
	Set(ctx context.Context, key, value string, updatedBy *string) error
}

type policyRepo struct {
	db *gorm.DB
}

// NewPolicyRepo 创建 PolicyRepository 实例
func NewPolicyRepo(db *gorm.DB) PolicyRepository {
	return &policyRepo{db: db}
}

func (r *policyRepo) Get(ctx context.Context, key string) (*model.PolicyValue, error) {
	var pv model.PolicyValue
	err := r.db.WithContext(ctx).
		Where(&model.PolicyValue{Key: key}).
		First(&pv).Error
	if err != nil {
		return nil, err
	}
	return &pv, nil
}

func (r *policyRepo) Set(ctx context.Context, key, value string, updatedBy *string) error {
	pv := &model.PolicyValue{
		Key:       key,
		Value:     value,
		UpdatedBy: updatedBy,
		UpdatedAt: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_by", "updated_at"}),
		}).
		Create(pv).Error
}

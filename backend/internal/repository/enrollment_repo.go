package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"scsc-homepage/backend/internal/model"
)

// EnrollmentRepository 学期入会记录数据访问接口
type EnrollmentRepository interface {
	// Create 同一用户同一学期重复写入时忽略
	Create(ctx context.Context, e *model.Enrollment) error
	ListUserIDs(ctx context.Context, year, semester int) ([]string, error)
}

type enrollmentRepo struct {
	db *gorm.DB
}

// NewEnrollmentRepo 创建 EnrollmentRepository 实例
func NewEnrollmentRepo(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepo{db: db}
}

func (r *enrollmentRepo) Create(ctx context.Context, e *model.Enrollment) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(e).Error
}

func (r *enrollmentRepo) ListUserIDs(ctx context.Context, year, semester int) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.Enrollment{}).
		Where("year = ? AND semester = ?", year, semester).
		Pluck("user_id", &ids).Error
	return ids, err
}

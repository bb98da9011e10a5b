package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"scsc-homepage/backend/internal/model"
)

// OldboyApplicantRepository 老会员申请数据访问接口
type OldboyApplicantRepository interface {
	Create(ctx context.Context, a *model.OldboyApplicant) error
	ListUnprocessed(ctx context.Context) ([]model.OldboyApplicant, error)
	MarkProcessed(ctx context.Context, id int64) error
}

type oldboyApplicantRepo struct {
	db *gorm.DB
}

// NewOldboyApplicantRepo 创建 OldboyApplicantRepository 实例
func NewOldboyApplicantRepo(db *gorm.DB) OldboyApplicantRepository {
	return &oldboyApplicantRepo{db: db}
}

func (r *oldboyApplicantRepo) Create(ctx context.Context, a *model.OldboyApplicant) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *oldboyApplicantRepo) ListUnprocessed(ctx context.Context) ([]model.OldboyApplicant, error) {
	var list []model.OldboyApplicant
	err := r.db.WithContext(ctx).
		Where("processed = ?", false).
		Order("id").
		Find(&list).Error
	return list, err
}

func (r *oldboyApplicantRepo) MarkProcessed(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&model.OldboyApplicant{}).
		Where("id = ? AND processed = ?", id, false).
		Updates(map[string]interface{}{
			"processed":  true,
			"updated_at": time.Now().UTC(),
		}).Error
}

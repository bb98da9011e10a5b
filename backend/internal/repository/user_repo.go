package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"scsc-homepage/backend/internal/model"
)

// UserRepository 用户数据访问接口
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	FindByName(ctx context.Context, name string) ([]model.User, error)
	// FindByNameAndPhoneTail 按姓名 + 手机号末两位查找
	FindByNameAndPhoneTail(ctx context.Context, name, tail string) ([]model.User, error)
	UpdateStatus(ctx context.Context, id, status string) error
	UpdateRoleAndStatus(ctx context.Context, id string, role int, status string) error

	// ── 学期切换批量操作 ──

	// ListRecomputable 非封禁、非特权（role < oldboy）的用户
	ListRecomputable(ctx context.Context) ([]model.User, error)
	SetStatusByIDs(ctx context.Context, ids []string, status string) (int64, error)
	// MarkDormant 将 role < belowRole 且状态不为 active/banned 的用户置为 dormant
	MarkDormant(ctx context.Context, belowRole int) (int64, error)
}

// userRepo UserRepository 的 GORM 实现
type userRepo struct {
	db *gorm.DB
}

// NewUserRepo 创建 UserRepository 实例
func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) FindByName(ctx context.Context, name string) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Where("name = ?", name).
		Order("id").
		Find(&users).Error
	return users, err
}

func (r *userRepo) FindByNameAndPhoneTail(ctx context.Context, name, tail string) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Where("name = ? AND phone LIKE ?", name, "%"+tail).
		Order("id").
		Find(&users).Error
	return users, err
}

func (r *userRepo) UpdateStatus(ctx context.Context, id, status string) error {
	return r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *userRepo) UpdateRoleAndStatus(ctx context.Context, id string, role int, status string) error {
	return r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"role":       role,
			"status":     status,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *userRepo) ListRecomputable(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Where("status <> ? AND role < ?", model.UserBanned, model.RoleOldboy).
		Find(&users).Error
	return users, err
}

func (r *userRepo) SetStatusByIDs(ctx context.Context, ids []string, status string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *userRepo) MarkDormant(ctx context.Context, belowRole int) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("role < ? AND status NOT IN ?", belowRole, []string{model.UserActive, model.UserBanned}).
		Updates(map[string]interface{}{
			"status":     model.UserDormant,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

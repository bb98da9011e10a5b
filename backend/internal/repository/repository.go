package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	GlobalStatus    GlobalStatusRepository
	User            UserRepository
	InterestGroup   InterestGroupRepository
	Standby         StandbyRepository
	Enrollment      EnrollmentRepository
	OldboyApplicant OldboyApplicantRepository
	Policy          PolicyRepository
	Backup          BackupRecordRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:              db,
		GlobalStatus:    NewGlobalStatusRepo(db),
		User:            NewUserRepo(db),
		InterestGroup:   NewInterestGroupRepo(db),
		Standby:         NewStandbyRepo(db),
		Enrollment:      NewEnrollmentRepo(db),
		OldboyApplicant: NewOldboyApplicantRepo(db),
		Policy:          NewPolicyRepo(db),
		Backup:          NewBackupRecordRepo(db),
	}
}

// BeginTx 开启事务；聚合未绑定数据库（单元测试中的 mock 组合）时返回 nil
func (r *Repository) BeginTx(ctx context.Context) (*gorm.DB, error) {
	if r.db == nil {
		return nil, nil
	}
	tx := r.db.WithContext(ctx).Begin()
	return tx, tx.Error
}

// WithTx 返回绑定到 tx 的聚合；tx 为 nil 时返回自身
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return NewRepository(tx)
}

// Transaction 在事务内执行 fn，fn 返回错误或 panic 时回滚
// 在已处于事务中的聚合上调用时使用 SAVEPOINT，只回滚 fn 自身的修改
func (r *Repository) Transaction(ctx context.Context, fn func(txRepo *Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}

// Package repotest 为各层测试提供基于 SQLite 文件库的 Repository
package repotest

import (
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"scsc-homepage/backend/internal/model"
	"scsc-homepage/backend/internal/repository"
)

// Models 测试库需要建表的全部模型
var Models = []interface{}{
	&model.GlobalStatus{},
	&model.User{},
	&model.InterestGroup{},
	&model.StandbyRequest{},
	&model.Enrollment{},
	&model.OldboyApplicant{},
	&model.PolicyValue{},
	&model.BackupRecord{},
}

// OpenDB 在 t.TempDir() 下创建 SQLite 库并建表
// 单连接：事务期间所有访问必须经由事务句柄
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "scsc_test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("打开 SQLite 失败: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("获取 sql.DB 失败: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(Models...); err != nil {
		t.Fatalf("AutoMigrate 失败: %v", err)
	}
	return db
}

// New 返回绑定到新测试库的 Repository 聚合
func New(t testing.TB) (*repository.Repository, *gorm.DB) {
	t.Helper()
	db := OpenDB(t)
	return repository.NewRepository(db), db
}

package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"scsc-homepage/backend/config"
	"scsc-homepage/backend/internal/dto"
	"scsc-homepage/backend/internal/model"
	"scsc-homepage/backend/internal/repository"
)

// ── 备份模块业务错误 ──

var ErrBackupFailed = errors.New("数据库备份失败")

// Backuper 生成一份完整的数据库备份，返回文件路径
type Backuper interface {
	Backup(ctx context.Context, reason string) (string, error)
}

// BackupService 备份业务接口
type BackupService interface {
	Backuper
	ListRecent(ctx context.Context, limit int) ([]dto.BackupResponse, error)
	// StartSchedule 按 cron 表达式定时备份；spec 为空时返回 nil
	StartSchedule(spec string) (*cron.Cron, error)
}

type backupService struct {
	cfg    config.BackupConfig
	dbURL  string
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewBackupService 创建基于 pg_dump 的 BackupService
func NewBackupService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) BackupService {
	return &backupService{
		cfg:    cfg.Backup,
		dbURL:  cfg.Database.URL(),
		repo:   repo,
		logger: logger.Named("backup"),
		now:    time.Now,
	}
}

// ────────────────────── Backup ──────────────────────

func (s *backupService) Backup(ctx context.Context, reason string) (string, error) {
	if err := os.MkdirAll(s.cfg.Dir, 0o750); err != nil {
		return "", fmt.Errorf("%w: 创建备份目录: %v", ErrBackupFailed, err)
	}

	name := fmt.Sprintf("scsc_%s_%s.dump", s.now().UTC().Format("20060102T150405Z"), sanitizeReason(reason))
	path := filepath.Join(s.cfg.Dir, name)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.cfg.PgDumpPath, "-Fc", "-f", path, s.dbURL)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		_ = os.Remove(path)
		s.logger.Error("pg_dump 执行失败",
			zap.String("reason", reason),
			zap.String("stderr", strings.TrimSpace(stderr.String())),
			zap.Error(err),
		)
		return "", fmt.Errorf("%w: %v", ErrBackupFailed, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: 备份文件不存在: %v", ErrBackupFailed, err)
	}

	rec := &model.BackupRecord{Path: path, Reason: reason, SizeBytes: info.Size()}
	if err := s.repo.Backup.Create(ctx, rec); err != nil {
		// 文件已生成，审计记录失败不影响备份本身
		s.logger.Warn("写入备份记录失败", zap.String("path", path), zap.Error(err))
	}

	s.logger.Info("数据库备份完成",
		zap.String("path", path),
		zap.String("reason", reason),
		zap.Int64("size_bytes", info.Size()),
	)
	return path, nil
}

// ────────────────────── ListRecent ──────────────────────

func (s *backupService) ListRecent(ctx context.Context, limit int) ([]dto.BackupResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	records, err := s.repo.Backup.ListRecent(ctx, limit)
	if err != nil {
		s.logger.Error("查询备份记录失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.BackupResponse, 0, len(records))
	for _, r := range records {
		result = append(result, dto.BackupResponse{
			ID:        r.ID,
			Path:      r.Path,
			Reason:    r.Reason,
			SizeBytes: r.SizeBytes,
			CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return result, nil
}

// ────────────────────── StartSchedule ──────────────────────

func (s *backupService) StartSchedule(spec string) (*cron.Cron, error) {
	if spec == "" {
		return nil, nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if _, err := s.Backup(ctx, "scheduled"); err != nil {
			s.logger.Error("定时备份失败", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("无效的备份 cron 表达式 %q: %w", spec, err)
	}

	c.Start()
	s.logger.Info("定时备份已启用", zap.String("cron", spec))
	return c, nil
}

// sanitizeReason 保证原因可安全用于文件名
func sanitizeReason(reason string) string {
	var b strings.Builder
	for _, r := range reason {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "manual"
	}
	return b.String()
}

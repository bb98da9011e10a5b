package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"scsc-homepage/backend/internal/dto"
	"scsc-homepage/backend/internal/model"
	"scsc-homepage/backend/internal/repository"
	pkgerrors "scsc-homepage/backend/pkg/errors"
	applogger "scsc-homepage/backend/pkg/logger"
)

// ── 全局状态模块业务错误 ──

var (
	ErrGlobalStatusNotFound     = errors.New("全局状态未初始化")
	ErrInvalidTransition        = errors.New("无效的状态切换")
	ErrTransitionPrecondition   = errors.New("状态切换前置条件未满足")
	ErrTransitionInProgress     = errors.New("已有状态切换正在进行")
	ErrReconciliationInProgress = errors.New("入金核对进行中，请稍后再切换")
	ErrBotUnavailable           = errors.New("Bot 服务不可用")
)

// allowedTransitions 合法的状态切换边
var allowedTransitions = map[string]map[string]bool{
	model.StatusInactive:   {model.StatusRecruiting: true},
	model.StatusRecruiting: {model.StatusActive: true},
	model.StatusActive:     {model.StatusRecruiting: true, model.StatusInactive: true},
}

// LifecycleService 全局状态（学期生命周期）业务接口
type LifecycleService interface {
	GetGlobalStatus(ctx context.Context) (*dto.GlobalStatusResponse, error)
	// UpdateGlobalStatus 执行一次状态切换及其级联
	// 校验 → 前置条件 → 备份 → 事务内级联 → 提交 → 发送 Bot 通知
	UpdateGlobalStatus(ctx context.Context, actingUserID, requested string) (*dto.TransitionResult, error)
}

type lifecycleService struct {
	repo   *repository.Repository
	bot    BotGateway
	backup Backuper
	guard  *TransitionGuard
	logger *zap.Logger
	now    func() time.Time
}

// NewLifecycleService 创建 LifecycleService 实例
func NewLifecycleService(
	repo *repository.Repository,
	bot BotGateway,
	backup Backuper,
	guard *TransitionGuard,
	logger *zap.Logger,
) LifecycleService {
	return &lifecycleService{
		repo:   repo,
		bot:    bot,
		backup: backup,
		guard:  guard,
		logger: logger.Named("lifecycle"),
		now:    time.Now,
	}
}

// ────────────────────── GetGlobalStatus ──────────────────────

func (s *lifecycleService) GetGlobalStatus(ctx context.Context) (*dto.GlobalStatusResponse, error) {
	gs, err := s.loadStatus(ctx)
	if err != nil {
		return nil, err
	}
	return toGlobalStatusResponse(gs), nil
}

// ────────────────────── UpdateGlobalStatus ──────────────────────

func (s *lifecycleService) UpdateGlobalStatus(ctx context.Context, actingUserID, requested string) (*dto.TransitionResult, error) {
	release, err := s.guard.AcquireExclusive(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := s.loadStatus(ctx)
	if err != nil {
		return nil, err
	}
	from := current.Status
	period := Period{Year: current.Year, Semester: current.Semester}

	if !allowedTransitions[from][requested] {
		return nil, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, requested)
	}

	if from == model.StatusActive {
		if err := s.checkEnrollmentGrant(ctx, period); err != nil {
			return nil, err
		}
	}

	backupPath, err := s.backup.Backup(ctx, fmt.Sprintf("transition-%s-%s", from, requested))
	if err != nil {
		if !errors.Is(err, ErrBackupFailed) {
			err = fmt.Errorf("%w: %v", ErrBackupFailed, err)
		}
		return nil, err
	}

	result := &dto.TransitionResult{From: from, To: requested, BackupPath: backupPath}
	out := &outbox{}

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		next := period
		if from == model.StatusActive {
			advanced, err := s.leaveActive(ctx, tx, period, out, result)
			if err != nil {
				return err
			}
			next = advanced
		}

		switch requested {
		case model.StatusRecruiting:
			s.enterRecruiting(next, out)
		case model.StatusActive:
			if err := s.enterActive(ctx, tx); err != nil {
				return err
			}
		case model.StatusInactive:
			if err := s.enterInactive(ctx, tx); err != nil {
				return err
			}
		}

		updated := &model.GlobalStatus{
			Status:    requested,
			Year:      next.Year,
			Semester:  next.Semester,
			UpdatedAt: s.now().UTC(),
			UpdatedBy: &actingUserID,
		}
		if err := tx.GlobalStatus.CompareAndSwap(ctx, current, updated); err != nil {
			if errors.Is(err, pkgerrors.ErrOptimisticLock) {
				return fmt.Errorf("%w: 全局状态已被其他进程修改", ErrTransitionInProgress)
			}
			return fmt.Errorf("写入全局状态失败: %w", err)
		}

		result.Year, result.Semester = next.Year, next.Semester
		return nil
	})
	log := applogger.FromContext(ctx, s.logger)
	if err != nil {
		log.Error("状态切换失败，已回滚",
			zap.String("from", from),
			zap.String("to", requested),
			zap.String("actor", actingUserID),
			zap.Error(err),
		)
		return nil, err
	}

	log.Info("全局状态已切换",
		zap.String("from", from),
		zap.String("to", requested),
		zap.String("period", Period{Year: result.Year, Semester: result.Semester}.Label()),
		zap.String("actor", actingUserID),
		zap.String("backup", backupPath),
		zap.Int("rollover_failures", len(result.RolloverFailures)),
	)

	s.flush(ctx, out, result)
	return result, nil
}

// checkEnrollmentGrant 离开 active 前，入会资格有效期必须晚于当前学期
func (s *lifecycleService) checkEnrollmentGrant(ctx context.Context, current Period) error {
	pv, err := s.repo.Policy.Get(ctx, model.PolicyEnrollmentGrantUntil)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: 未设置 %s", ErrTransitionPrecondition, model.PolicyEnrollmentGrantUntil)
		}
		s.logger.Error("读取策略失败", zap.String("key", model.PolicyEnrollmentGrantUntil), zap.Error(err))
		return err
	}

	grant, err := parsePeriodJSON(pv.Value)
	if err != nil {
		return fmt.Errorf("%w: %s 格式无效: %v", ErrTransitionPrecondition, model.PolicyEnrollmentGrantUntil, err)
	}
	if !grant.After(current) {
		return fmt.Errorf("%w: 入会资格有效期 %s 未晚于当前学期 %s", ErrTransitionPrecondition, grant, current)
	}
	return nil
}

// ── 级联步骤 ──

// leaveActive 结束当前学期：归档分类、小组滚动、推进学期、清空待核对申请、重算用户状态
func (s *lifecycleService) leaveActive(
	ctx context.Context,
	tx *repository.Repository,
	ended Period,
	out *outbox,
	result *dto.TransitionResult,
) (Period, error) {
	out.add("set_previous_semester", nil, func(ctx context.Context) error {
		return s.bot.SetPreviousSemester(ctx, ended)
	})

	// 先查询再创建，避免重复创建归档分类
	for _, kind := range model.GroupKinds {
		exists, err := s.bot.ArchiveCategoryExists(ctx, kind, ended)
		if err != nil {
			return Period{}, fmt.Errorf("%w: %v", ErrBotUnavailable, err)
		}
		if !exists {
			kind := kind
			out.add("create_archive_category", nil, func(ctx context.Context) error {
				return s.bot.CreateArchiveCategory(ctx, kind, ended)
			})
		}
	}

	next := ended.Next()
	if err := s.rollover(ctx, tx, ended, next, out, result); err != nil {
		return Period{}, err
	}

	cleared, err := tx.Standby.DeleteAll(ctx)
	if err != nil {
		return Period{}, fmt.Errorf("清空待核对申请失败: %w", err)
	}

	activated, pending, err := s.recomputeUsers(ctx, tx, next)
	if err != nil {
		return Period{}, err
	}

	s.logger.Info("学期已结束",
		zap.String("ended", ended.Label()),
		zap.String("next", next.Label()),
		zap.Int64("standby_cleared", cleared),
		zap.Int64("users_active", activated),
		zap.Int64("users_pending", pending),
	)
	return next, nil
}

// rollover 逐个处理本学期小组；单个小组失败只回滚该小组并继续
func (s *lifecycleService) rollover(
	ctx context.Context,
	tx *repository.Repository,
	ended, next Period,
	out *outbox,
	result *dto.TransitionResult,
) error {
	groups, err := tx.InterestGroup.ListActivePeriod(ctx, ended.Year, ended.Semester)
	if err != nil {
		return fmt.Errorf("查询本学期小组失败: %w", err)
	}

	var failures *multierror.Error
	for i := range groups {
		g := groups[i]
		err := tx.Transaction(ctx, func(gtx *repository.Repository) error {
			if g.ShouldExtend {
				return gtx.InterestGroup.Advance(ctx, g.ID, next.Year, next.Semester)
			}
			return gtx.InterestGroup.SetStatus(ctx, g.ID, model.StatusInactive)
		})
		if err != nil {
			s.logger.Error("小组学期滚动失败",
				zap.Int64("group_id", g.ID),
				zap.String("kind", g.Kind),
				zap.String("title", g.Title),
				zap.Error(err),
			)
			failures = multierror.Append(failures, fmt.Errorf("group %d (%s): %w", g.ID, g.Title, err))
			result.RolloverFailures = append(result.RolloverFailures, groupFailure(&g, err))
			continue
		}

		if !g.ShouldExtend {
			out.add("archive_group", &g, func(ctx context.Context) error {
				return s.bot.ArchiveGroup(ctx, &g, ended)
			})
		}
	}

	if err := failures.ErrorOrNil(); err != nil {
		s.logger.Warn("学期滚动部分失败",
			zap.Int("failed", failures.Len()),
			zap.Int("total", len(groups)),
			zap.Error(err),
		)
	}
	return nil
}

// recomputeUsers 非封禁、非特权用户：新学期已有入会记录为 active，否则 pending
func (s *lifecycleService) recomputeUsers(ctx context.Context, tx *repository.Repository, next Period) (int64, int64, error) {
	enrolledIDs, err := tx.Enrollment.ListUserIDs(ctx, next.Year, next.Semester)
	if err != nil {
		return 0, 0, fmt.Errorf("查询入会记录失败: %w", err)
	}
	enrolled := make(map[string]struct{}, len(enrolledIDs))
	for _, id := range enrolledIDs {
		enrolled[id] = struct{}{}
	}

	users, err := tx.User.ListRecomputable(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("查询待重算用户失败: %w", err)
	}

	var activeIDs, pendingIDs []string
	for _, u := range users {
		if _, ok := enrolled[u.ID]; ok {
			activeIDs = append(activeIDs, u.ID)
		} else {
			pendingIDs = append(pendingIDs, u.ID)
		}
	}

	activated, err := tx.User.SetStatusByIDs(ctx, activeIDs, model.UserActive)
	if err != nil {
		return 0, 0, fmt.Errorf("更新用户状态失败: %w", err)
	}
	pending, err := tx.User.SetStatusByIDs(ctx, pendingIDs, model.UserPending)
	if err != nil {
		return 0, 0, fmt.Errorf("更新用户状态失败: %w", err)
	}
	return activated, pending, nil
}

// enterRecruiting 为新学期的两类小组各请求一个归档分类
func (s *lifecycleService) enterRecruiting(period Period, out *outbox) {
	for _, kind := range model.GroupKinds {
		kind := kind
		out.add("create_archive_category", nil, func(ctx context.Context) error {
			return s.bot.CreateArchiveCategory(ctx, kind, period)
		})
	}
}

// enterActive 招募中的小组全部转为 active
func (s *lifecycleService) enterActive(ctx context.Context, tx *repository.Repository) error {
	n, err := tx.InterestGroup.SetStatusWhere(ctx, model.StatusRecruiting, model.StatusActive)
	if err != nil {
		return fmt.Errorf("激活招募中小组失败: %w", err)
	}
	s.logger.Info("招募中小组已激活", zap.Int64("count", n))
	return nil
}

// enterInactive 处理老会员申请，再将其余未激活的普通用户置为 dormant
func (s *lifecycleService) enterInactive(ctx context.Context, tx *repository.Repository) error {
	applicants, err := tx.OldboyApplicant.ListUnprocessed(ctx)
	if err != nil {
		return fmt.Errorf("查询老会员申请失败: %w", err)
	}
	for _, a := range applicants {
		if err := tx.User.UpdateRoleAndStatus(ctx, a.UserID, model.RoleOldboy, model.UserActive); err != nil {
			return fmt.Errorf("处理老会员申请 %d 失败: %w", a.ID, err)
		}
		if err := tx.OldboyApplicant.MarkProcessed(ctx, a.ID); err != nil {
			return fmt.Errorf("标记老会员申请 %d 失败: %w", a.ID, err)
		}
	}

	dormant, err := tx.User.MarkDormant(ctx, model.RoleExecutive)
	if err != nil {
		return fmt.Errorf("更新休眠用户失败: %w", err)
	}

	s.logger.Info("进入休止期",
		zap.Int("oldboy_processed", len(applicants)),
		zap.Int64("users_dormant", dormant),
	)
	return nil
}

// ── Bot 通知（提交后发送）──

type notification struct {
	name  string
	group *model.InterestGroup
	send  func(ctx context.Context) error
}

// outbox 级联过程中产生的即发即弃通知，事务提交后再发送
type outbox struct {
	items []notification
}

func (o *outbox) add(name string, group *model.InterestGroup, send func(ctx context.Context) error) {
	o.items = append(o.items, notification{name: name, group: group, send: send})
}

// flush 通知失败只记录，不影响已提交的切换
func (s *lifecycleService) flush(ctx context.Context, out *outbox, result *dto.TransitionResult) {
	for _, n := range out.items {
		if err := n.send(ctx); err != nil {
			fields := []zap.Field{zap.String("notification", n.name), zap.Error(err)}
			if n.group != nil {
				fields = append(fields, zap.Int64("group_id", n.group.ID), zap.String("title", n.group.Title))
				result.RolloverFailures = append(result.RolloverFailures, groupFailure(n.group, err))
			}
			s.logger.Error("发送 Bot 通知失败", fields...)
		}
	}
}

// ── 内部辅助方法 ──

func (s *lifecycleService) loadStatus(ctx context.Context) (*model.GlobalStatus, error) {
	gs, err := s.repo.GlobalStatus.Get(ctx)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrSingletonMissing) {
			return nil, ErrGlobalStatusNotFound
		}
		s.logger.Error("查询全局状态失败", zap.Error(err))
		return nil, err
	}
	return gs, nil
}

func groupFailure(g *model.InterestGroup, err error) dto.GroupFailure {
	return dto.GroupFailure{GroupID: g.ID, Kind: g.Kind, Title: g.Title, Error: err.Error()}
}

func toGlobalStatusResponse(gs *model.GlobalStatus) *dto.GlobalStatusResponse {
	return &dto.GlobalStatusResponse{
		Status:    gs.Status,
		Year:      gs.Year,
		Semester:  gs.Semester,
		Period:    Period{Year: gs.Year, Semester: gs.Semester}.Label(),
		UpdatedAt: gs.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

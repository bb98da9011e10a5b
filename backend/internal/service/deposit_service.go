package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"scsc-homepage/backend/config"
	"scsc-homepage/backend/internal/dto"
	"scsc-homepage/backend/internal/model"
	"scsc-homepage/backend/internal/repository"
	applogger "scsc-homepage/backend/pkg/logger"
)

// 入金核对结果码
const (
	DepositOK            = 200
	DepositInvalid       = 400
	DepositUnderpaid     = 402
	DepositNotFound      = 404
	DepositAmbiguous     = 409
	DepositStateMismatch = 412
	DepositOverpaid      = 413
	DepositInternal      = 500
)

// errDepositRejected 非 200 结果时回滚事务
var errDepositRejected = errors.New("deposit rejected")

// DepositService 入金核对业务接口
// 业务失败一律以结果码返回，不返回 error
type DepositService interface {
	// Check 核对单条入金记录
	Check(ctx context.Context, record dto.DepositRecord) dto.DepositResult
	// BatchCheck 解析银行导出 CSV 并逐条核对；只有文件本身无法解析时返回 error
	BatchCheck(ctx context.Context, r io.Reader) (*dto.BatchDepositResponse, error)
	// ExportResults 将批量核对结果写为 .xlsx
	ExportResults(batch *dto.BatchDepositResponse, w io.Writer) error
	ListStandby(ctx context.Context) ([]dto.StandbyResponse, error)
}

type depositService struct {
	repo   *repository.Repository
	guard  *TransitionGuard
	fee    int64
	csv    csvOptions
	logger *zap.Logger
	now    func() time.Time
}

// NewDepositService 创建 DepositService 实例
func NewDepositService(
	repo *repository.Repository,
	guard *TransitionGuard,
	cfg config.EnrollmentConfig,
	logger *zap.Logger,
) DepositService {
	return &depositService{
		repo:  repo,
		guard: guard,
		fee:   cfg.Fee,
		csv: csvOptions{
			headerLines:  cfg.CSVHeaderLines,
			trailerLines: cfg.CSVTrailerLines,
			location:     time.FixedZone(fmt.Sprintf("UTC%+d", cfg.TimezoneOffsetHours), cfg.TimezoneOffsetHours*3600),
		},
		logger: logger.Named("deposit"),
		now:    time.Now,
	}
}

// ────────────────────── Check ──────────────────────

func (s *depositService) Check(ctx context.Context, record dto.DepositRecord) dto.DepositResult {
	release := s.guard.AcquireShared()
	defer release()

	result := s.check(ctx, record)
	log := applogger.FromContext(ctx, s.logger)
	switch {
	case result.ResultCode == DepositOK:
		log.Info("入金核对成功",
			zap.String("deposit_name", record.DepositName),
			zap.Int64("amount", record.Amount),
		)
	case result.ResultCode >= DepositInternal:
		log.Error("入金核对异常",
			zap.String("deposit_name", record.DepositName),
			zap.String("msg", result.ResultMsg),
		)
	default:
		log.Warn("入金核对未通过",
			zap.Int("code", result.ResultCode),
			zap.String("deposit_name", record.DepositName),
			zap.Int64("amount", record.Amount),
			zap.String("msg", result.ResultMsg),
		)
	}
	return result
}

// check 在单个事务内完成匹配，非 200 结果整体回滚
func (s *depositService) check(ctx context.Context, record dto.DepositRecord) (result dto.DepositResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("入金核对 panic",
				zap.Any("panic", r),
				zap.String("deposit_name", record.DepositName),
				zap.Stack("stack"),
			)
			result = depositResult(DepositInternal, "内部错误", record, nil)
		}
	}()

	if msg := validateRecord(record); msg != "" {
		return depositResult(DepositInvalid, msg, record, nil)
	}

	var outcome dto.DepositResult
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		res, err := s.match(ctx, tx, record)
		if err != nil {
			return err
		}
		outcome = res
		if res.ResultCode != DepositOK {
			return errDepositRejected
		}
		return nil
	})
	if err != nil && !errors.Is(err, errDepositRejected) {
		s.logger.Error("入金核对失败", zap.String("deposit_name", record.DepositName), zap.Error(err))
		return depositResult(DepositInternal, "内部错误", record, outcome.Users)
	}
	return outcome
}

// match 返回业务结果；error 只表示意外故障
func (s *depositService) match(ctx context.Context, tx *repository.Repository, record dto.DepositRecord) (dto.DepositResult, error) {
	name := strings.TrimSpace(record.DepositName)
	personName, tail, byPhone := splitPhoneTail(name)

	var (
		requests []model.StandbyRequest
		err      error
	)
	if byPhone {
		requests, err = tx.Standby.FindUncheckedByDepositName(ctx, name)
	} else {
		requests, err = tx.Standby.FindUncheckedByUserName(ctx, name)
	}
	if err != nil {
		return dto.DepositResult{}, fmt.Errorf("查询入会申请失败: %w", err)
	}

	if len(requests) > 1 {
		users, err := s.requestUsers(ctx, tx, requests)
		if err != nil {
			return dto.DepositResult{}, err
		}
		return depositResult(DepositAmbiguous, "存在多个匹配的入会申请", record, users), nil
	}

	var req *model.StandbyRequest
	if len(requests) == 1 {
		req = &requests[0]
	} else {
		var rejected *dto.DepositResult
		req, rejected, err = s.fallback(ctx, tx, record, personName, tail, byPhone)
		if err != nil {
			return dto.DepositResult{}, err
		}
		if rejected != nil {
			return *rejected, nil
		}
	}

	user, err := tx.User.GetByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return depositResult(DepositNotFound, "入会申请对应的用户不存在", record, nil), nil
		}
		return dto.DepositResult{}, fmt.Errorf("查询用户失败: %w", err)
	}
	users := []dto.DepositUser{toDepositUser(user)}

	switch {
	case record.Amount < s.fee:
		return depositResult(DepositUnderpaid, fmt.Sprintf("入金金额不足，应为 %d", s.fee), record, users), nil
	case record.Amount > s.fee:
		return depositResult(DepositOverpaid, fmt.Sprintf("入金金额超出，应为 %d", s.fee), record, users), nil
	}

	if user.Status != model.UserStandby {
		return depositResult(DepositStateMismatch, fmt.Sprintf("用户状态为 %s，不是 standby", user.Status), record, users), nil
	}

	if err := tx.User.UpdateStatus(ctx, user.ID, model.UserActive); err != nil {
		return dto.DepositResult{}, fmt.Errorf("更新用户状态失败: %w", err)
	}
	if err := tx.Standby.MarkChecked(ctx, req.ID, name, record.DepositTime); err != nil {
		return dto.DepositResult{}, fmt.Errorf("标记入会申请失败: %w", err)
	}

	periods, err := s.enrollmentPeriods(ctx, tx)
	if err != nil {
		return dto.DepositResult{}, err
	}
	for _, p := range periods {
		if err := tx.Enrollment.Create(ctx, &model.Enrollment{UserID: user.ID, Year: p.Year, Semester: p.Semester}); err != nil {
			return dto.DepositResult{}, fmt.Errorf("写入入会记录失败: %w", err)
		}
	}

	user.Status = model.UserActive
	return depositResult(DepositOK, "入金确认完成", record, []dto.DepositUser{toDepositUser(user)}), nil
}

// maxEnrollmentSpan 一次缴费最多覆盖的学期数
const maxEnrollmentSpan = 8

// enrollmentPeriods 缴费覆盖的学期：从当前学期到 enrollment_grant_until（含）
// 策略未设置、格式无效或不晚于当前学期时只覆盖当前学期
func (s *depositService) enrollmentPeriods(ctx context.Context, tx *repository.Repository) ([]Period, error) {
	gs, err := tx.GlobalStatus.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取全局状态失败: %w", err)
	}
	current := Period{Year: gs.Year, Semester: gs.Semester}
	through := current

	pv, err := tx.Policy.Get(ctx, model.PolicyEnrollmentGrantUntil)
	switch {
	case err == nil:
		grant, perr := parsePeriodJSON(pv.Value)
		if perr != nil {
			s.logger.Warn("入会资格有效期格式无效，仅写入当前学期",
				zap.String("value", pv.Value), zap.Error(perr))
		} else if grant.After(current) {
			through = grant
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, fmt.Errorf("读取策略失败: %w", err)
	}

	periods := []Period{current}
	for p := current.Next(); !p.After(through) && len(periods) < maxEnrollmentSpan; p = p.Next() {
		periods = append(periods, p)
	}
	return periods, nil
}

// fallback 没有匹配的入会申请时直接查用户表
// 唯一命中且为 pending/standby 时以该用户未核对的申请作为匹配结果，没有则补建一条
func (s *depositService) fallback(
	ctx context.Context,
	tx *repository.Repository,
	record dto.DepositRecord,
	personName, tail string,
	byPhone bool,
) (*model.StandbyRequest, *dto.DepositResult, error) {
	var (
		found []model.User
		err   error
	)
	if byPhone {
		found, err = tx.User.FindByNameAndPhoneTail(ctx, personName, tail)
	} else {
		found, err = tx.User.FindByName(ctx, personName)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("查询用户失败: %w", err)
	}

	users := make([]dto.DepositUser, 0, len(found))
	for i := range found {
		users = append(users, toDepositUser(&found[i]))
	}

	switch len(found) {
	case 0:
		res := depositResult(DepositNotFound, "未找到匹配的入会申请或用户", record, users)
		return nil, &res, nil
	case 1:
	default:
		res := depositResult(DepositAmbiguous, "存在多个匹配的用户", record, users)
		return nil, &res, nil
	}

	user := &found[0]
	switch user.Status {
	case model.UserStandby:
	case model.UserPending:
		if err := tx.User.UpdateStatus(ctx, user.ID, model.UserStandby); err != nil {
			return nil, nil, fmt.Errorf("更新用户状态失败: %w", err)
		}
	default:
		res := depositResult(DepositStateMismatch, fmt.Sprintf("用户状态为 %s，无法入会", user.Status), record, users)
		return nil, &res, nil
	}

	// 沿用该用户尚未核对的申请，避免遗留申请干扰之后的核对
	existing, err := tx.Standby.FindUncheckedByUserID(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("查询入会申请失败: %w", err)
	}
	if len(existing) > 0 {
		return &existing[0], nil, nil
	}

	req := &model.StandbyRequest{
		UserID:      user.ID,
		UserName:    user.Name,
		DepositName: user.Name + phoneTail(user.Phone),
		CreatedAt:   s.now().UTC(),
	}
	if err := tx.Standby.Create(ctx, req); err != nil {
		return nil, nil, fmt.Errorf("创建入会申请失败: %w", err)
	}
	return req, nil, nil
}

func (s *depositService) requestUsers(ctx context.Context, tx *repository.Repository, requests []model.StandbyRequest) ([]dto.DepositUser, error) {
	users := make([]dto.DepositUser, 0, len(requests))
	for _, req := range requests {
		u, err := tx.User.GetByID(ctx, req.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				users = append(users, dto.DepositUser{ID: req.UserID, Name: req.UserName})
				continue
			}
			return nil, fmt.Errorf("查询用户失败: %w", err)
		}
		users = append(users, toDepositUser(u))
	}
	return users, nil
}

// ────────────────────── BatchCheck ──────────────────────

func (s *depositService) BatchCheck(ctx context.Context, r io.Reader) (*dto.BatchDepositResponse, error) {
	rows, err := parseBankCSV(r, s.csv)
	if err != nil {
		s.logger.Warn("解析银行 CSV 失败", zap.Error(err))
		return nil, err
	}

	resp := &dto.BatchDepositResponse{Results: make([]dto.DepositResult, 0, len(rows))}
	for _, row := range rows {
		var res dto.DepositResult
		if row.err != nil {
			res = depositResult(DepositInvalid, row.err.Error(), row.record, nil)
		} else {
			res = s.Check(ctx, row.record)
		}
		res.Row = row.line

		if res.ResultCode == DepositOK {
			resp.Success++
		} else {
			resp.Failure++
		}
		resp.Results = append(resp.Results, res)
	}

	s.logger.Info("批量入金核对完成",
		zap.Int("rows", len(rows)),
		zap.Int("success", resp.Success),
		zap.Int("failure", resp.Failure),
	)
	return resp, nil
}

// ────────────────────── ListStandby ──────────────────────

func (s *depositService) ListStandby(ctx context.Context) ([]dto.StandbyResponse, error) {
	requests, err := s.repo.Standby.ListUnchecked(ctx)
	if err != nil {
		s.logger.Error("查询待核对申请失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.StandbyResponse, 0, len(requests))
	for _, r := range requests {
		result = append(result, dto.StandbyResponse{
			ID:          r.ID,
			UserID:      r.UserID,
			UserName:    r.UserName,
			DepositName: r.DepositName,
			CreatedAt:   r.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return result, nil
}

// ── 内部辅助方法 ──

func validateRecord(record dto.DepositRecord) string {
	if strings.TrimSpace(record.DepositName) == "" {
		return "入金人不能为空"
	}
	if record.DepositTime.IsZero() {
		return "入金时间不能为空"
	}
	if _, offset := record.DepositTime.Zone(); offset != 0 {
		return "入金时间必须为 UTC"
	}
	return ""
}

// splitPhoneTail 末两位为数字时视为 姓名 + 手机号末两位
func splitPhoneTail(name string) (person, tail string, ok bool) {
	runes := []rune(name)
	if len(runes) < 2 || !unicode.IsDigit(runes[len(runes)-1]) || !unicode.IsDigit(runes[len(runes)-2]) {
		return name, "", false
	}
	return string(runes[:len(runes)-2]), string(runes[len(runes)-2:]), true
}

func phoneTail(phone string) string {
	digits := make([]rune, 0, len(phone))
	for _, r := range phone {
		if unicode.IsDigit(r) {
			digits = append(digits, r)
		}
	}
	if len(digits) <= 2 {
		return string(digits)
	}
	return string(digits[len(digits)-2:])
}

func toDepositUser(u *model.User) dto.DepositUser {
	return dto.DepositUser{ID: u.ID, Name: u.Name, Role: u.Role, Status: u.Status}
}

func depositResult(code int, msg string, record dto.DepositRecord, users []dto.DepositUser) dto.DepositResult {
	if users == nil {
		users = []dto.DepositUser{}
	}
	return dto.DepositResult{ResultCode: code, ResultMsg: msg, Record: record, Users: users}
}

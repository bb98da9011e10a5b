package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"scsc-homepage/backend/internal/model"
	"scsc-homepage/backend/pkg/mq"
)

// Bot 动作码
const (
	ActionCreateArchiveCategory = 4001
	ActionArchiveCategoryExists = 4002
	ActionArchiveGroup          = 4003
	ActionSetPreviousSemester   = 4004
)

// BotClient 网关依赖的 RPC 能力，由 *mq.Client 实现
type BotClient interface {
	Call(ctx context.Context, actionCode int, body any, timeout time.Duration) (json.RawMessage, error)
	CallNoReply(ctx context.Context, actionCode int, body any) error
}

// BotGateway 面向业务的 Discord Bot 操作
type BotGateway interface {
	// CreateArchiveCategory 即发即弃：为某类小组创建指定学期的归档分类
	CreateArchiveCategory(ctx context.Context, kind string, period Period) error
	// ArchiveCategoryExists 阻塞查询归档分类是否已存在
	ArchiveCategoryExists(ctx context.Context, kind string, period Period) (bool, error)
	// ArchiveGroup 即发即弃：把小组频道移入上一学期的归档分类
	ArchiveGroup(ctx context.Context, group *model.InterestGroup, previous Period) error
	// SetPreviousSemester 即发即弃：通知 Bot 刚结束的学期标签
	SetPreviousSemester(ctx context.Context, previous Period) error
}

type botGateway struct {
	client  BotClient
	timeout time.Duration
	logger  *zap.Logger
}

// NewBotGateway 创建 BotGateway；timeout <= 0 时使用客户端默认超时
func NewBotGateway(client BotClient, timeout time.Duration, logger *zap.Logger) BotGateway {
	return &botGateway{client: client, timeout: timeout, logger: logger.Named("bot")}
}

type archiveCategoryBody struct {
	Kind     string `json:"kind"`
	Semester string `json:"semester"`
}

type archiveGroupBody struct {
	Title            string `json:"title"`
	Kind             string `json:"kind"`
	PreviousSemester string `json:"previous_semester"`
}

type existsReply struct {
	Exists bool `json:"exists"`
}

func (g *botGateway) CreateArchiveCategory(ctx context.Context, kind string, period Period) error {
	body := archiveCategoryBody{Kind: kind, Semester: period.Label()}
	if err := g.client.CallNoReply(ctx, ActionCreateArchiveCategory, body); err != nil {
		return fmt.Errorf("请求创建归档分类 %s/%s 失败: %w", kind, period, err)
	}
	return nil
}

func (g *botGateway) ArchiveCategoryExists(ctx context.Context, kind string, period Period) (bool, error) {
	result, err := g.client.Call(ctx, ActionArchiveCategoryExists, archiveCategoryBody{Kind: kind, Semester: period.Label()}, g.timeout)
	if err != nil {
		return false, fmt.Errorf("查询归档分类 %s/%s 失败: %w", kind, period, err)
	}
	var reply existsReply
	if err := mq.DecodeResult(result, &reply); err != nil {
		return false, fmt.Errorf("解析归档分类查询结果失败: %w", err)
	}
	return reply.Exists, nil
}

func (g *botGateway) ArchiveGroup(ctx context.Context, group *model.InterestGroup, previous Period) error {
	body := archiveGroupBody{Title: group.Title, Kind: group.Kind, PreviousSemester: previous.Label()}
	if err := g.client.CallNoReply(ctx, ActionArchiveGroup, body); err != nil {
		return fmt.Errorf("请求归档小组 %d 失败: %w", group.ID, err)
	}
	return nil
}

func (g *botGateway) SetPreviousSemester(ctx context.Context, previous Period) error {
	body := map[string]string{"previous_semester": previous.Label()}
	if err := g.client.CallNoReply(ctx, ActionSetPreviousSemester, body); err != nil {
		return fmt.Errorf("通知上一学期标签失败: %w", err)
	}
	return nil
}

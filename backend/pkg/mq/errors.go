package mq

import (
	"errors"
	"fmt"
	"syscall"
)

// ── 调用方可识别的错误 ──

var (
	ErrNotConnected      = errors.New("消息队列未连接")
	ErrTimeout           = errors.New("等待回复超时")
	ErrConnectionClosing = errors.New("消息队列连接正在关闭")
	ErrConnectionLost    = errors.New("消息队列连接已断开")
	ErrPayloadTooLarge   = errors.New("消息体超过大小上限")
	ErrDuplicateID       = errors.New("关联 ID 重复")
)

// TransportError 连接/发布层错误
// Fatal 为 true 表示不应在原地重试（启动阶段应直接退出）
type TransportError struct {
	Op      string
	Refused bool
	Fatal   bool
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mq %s 失败: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError 回复无法解码
type ProtocolError struct {
	CorrelationID string
	Err           error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("回复解码失败 (correlation_id=%s): %v", e.CorrelationID, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// isConnRefused 仅连接被拒绝时才值得重试
func isConnRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}

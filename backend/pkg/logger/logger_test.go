package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"scsc-homepage/backend/config"
)

func TestNewLogger_Formats(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		l, err := NewLogger(&config.LogConfig{Level: "debug", Format: format})
		if err != nil {
			t.Fatalf("format=%s 初始化失败: %v", format, err)
		}
		if !l.Core().Enabled(zap.DebugLevel) {
			t.Errorf("format=%s 期望启用 debug 级别", format)
		}
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	if _, err := NewLogger(&config.LogConfig{Level: "loud", Format: "json"}); err == nil {
		t.Error("无效日志级别应返回错误")
	}
}

func TestFromContext_Fallback(t *testing.T) {
	fallback := zap.NewNop()
	if FromContext(context.Background(), fallback) != fallback {
		t.Error("ctx 中无日志器时应返回 fallback")
	}

	scoped := zap.NewNop().With(zap.String("request_id", "r-1"))
	ctx := WithContext(context.Background(), scoped)
	if FromContext(ctx, fallback) != scoped {
		t.Error("应返回 ctx 中的日志器")
	}
}

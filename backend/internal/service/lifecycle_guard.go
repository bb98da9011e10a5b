package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"scsc-homepage/backend/pkg/redis"
)

const (
	transitionLockKey = "lifecycle:transition"

	// defaultSharedWait 切换等待进行中的入金核对结束的上限
	defaultSharedWait = 10 * time.Second
	sharedPollEvery   = 20 * time.Millisecond
)

// DistributedLocker 跨进程互斥锁，由 *redis.Client 实现
type DistributedLocker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// TransitionGuard 保证同一时刻至多一个状态切换在执行
// 切换独占；入金核对共享，因此核对不会与切换的级联交错
type TransitionGuard struct {
	mu         sync.RWMutex
	exclusive  atomic.Bool
	sharedWait time.Duration
	locker     DistributedLocker
	lockTTL    time.Duration
	logger     *zap.Logger
}

// NewTransitionGuard locker 为 nil 时只做进程内互斥
func NewTransitionGuard(locker DistributedLocker, lockTTL time.Duration, logger *zap.Logger) *TransitionGuard {
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}
	return &TransitionGuard{sharedWait: defaultSharedWait, locker: locker, lockTTL: lockTTL, logger: logger}
}

// AcquireExclusive 已有切换时立即返回 ErrTransitionInProgress；
// 入金核对占用时最多等待 sharedWait，超时返回 ErrReconciliationInProgress
// 返回的 release 必须调用
func (g *TransitionGuard) AcquireExclusive(ctx context.Context) (release func(), err error) {
	if err := g.lockLocal(ctx); err != nil {
		return nil, err
	}
	unlock := func() {
		g.exclusive.Store(false)
		g.mu.Unlock()
	}

	if g.locker == nil {
		return unlock, nil
	}

	token, err := g.locker.AcquireLock(ctx, transitionLockKey, g.lockTTL)
	if err != nil {
		unlock()
		if errors.Is(err, redis.ErrLockHeld) {
			return nil, ErrTransitionInProgress
		}
		return nil, fmt.Errorf("获取状态切换锁失败: %w", err)
	}

	return func() {
		// 请求 ctx 可能已取消，释放锁使用独立的 ctx
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := g.locker.ReleaseLock(releaseCtx, transitionLockKey, token); err != nil {
			g.logger.Warn("释放状态切换锁失败，将等待其过期", zap.Error(err))
		}
		unlock()
	}, nil
}

// lockLocal 轮询 TryLock，不用 Lock 排队，避免阻塞后续核对
func (g *TransitionGuard) lockLocal(ctx context.Context) error {
	deadline := time.NewTimer(g.sharedWait)
	defer deadline.Stop()
	ticker := time.NewTicker(sharedPollEvery)
	defer ticker.Stop()

	for {
		if g.exclusive.Load() {
			return ErrTransitionInProgress
		}
		if g.mu.TryLock() {
			g.exclusive.Store(true)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			if g.exclusive.Load() {
				return ErrTransitionInProgress
			}
			return ErrReconciliationInProgress
		case <-ticker.C:
		}
	}
}

// AcquireShared 等待进行中的切换结束
func (g *TransitionGuard) AcquireShared() (release func()) {
	g.mu.RLock()
	return g.mu.RUnlock
}

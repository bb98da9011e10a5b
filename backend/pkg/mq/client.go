package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"scsc-homepage/backend/config"
)

// listenerStopTimeout Close 等待监听协程退出的上限
const listenerStopTimeout = 5 * time.Second

// Client 将单向消息队列包装成带关联 ID 的同步调用
// 进程内只创建一个实例，以引用注入给需要调用 Bot 的服务
type Client struct {
	cfg      config.MQConfig
	dial     Dialer
	logger   *zap.Logger
	metrics  *Metrics
	registry *Registry

	// connectMu 串行化 Connect / Close，不在调用路径上持有
	connectMu sync.Mutex

	mu            sync.RWMutex
	conn          Connection
	ch            Channel
	replyQueue    string
	consumerTag   string
	listenerDone  chan struct{}
	stopReconnect context.CancelFunc

	pubMu sync.Mutex
}

// Option 客户端可选项
type Option func(*Client)

// WithDialer 替换默认的 AMQP Dialer（测试使用内存 Broker）
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dial = d }
}

// WithMetrics 启用 Prometheus 指标
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient 创建客户端；此时不连接，需显式调用 Connect
func NewClient(cfg *config.MQConfig, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		cfg:      *cfg,
		dial:     DialAMQP,
		logger:   logger.Named("mq"),
		registry: NewRegistry(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ────────────────────── 连接管理 ──────────────────────

// Connect 按配置的重试次数与间隔建立连接
func (c *Client) Connect(ctx context.Context) error {
	return c.ConnectWithRetry(ctx, c.cfg.ConnectRetries, c.cfg.ConnectDelay)
}

// ConnectWithRetry 幂等：已连接时立即返回
// 仅"连接被拒绝"会按固定间隔重试，其余错误直接视为致命
func (c *Client) ConnectWithRetry(ctx context.Context, retries int, delay time.Duration) error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if c.IsConnected() {
		return nil
	}
	if retries < 1 {
		retries = 1
	}

	var (
		conn    Connection
		lastErr error
		attempt int
	)
	err := retry.Do(
		func() error {
			attempt++
			cn, err := c.dial(c.cfg.URL)
			if err != nil {
				lastErr = err
				c.logger.Warn("连接消息队列失败",
					zap.Int("attempt", attempt),
					zap.Int("retries", retries),
					zap.Bool("refused", isConnRefused(err)),
					zap.Error(err),
				)
				return err
			}
			conn = cn
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(retries)),
		retry.Delay(delay),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(isConnRefused),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if lastErr == nil {
			lastErr = err
		}
		if isConnRefused(lastErr) {
			return &TransportError{
				Op:      "connect",
				Refused: true,
				Fatal:   true,
				Err:     fmt.Errorf("%d 次尝试后仍被拒绝: %w", attempt, lastErr),
			}
		}
		return &TransportError{Op: "connect", Fatal: true, Err: lastErr}
	}

	if err := c.setup(conn); err != nil {
		_ = conn.Close()
		return &TransportError{Op: "setup", Fatal: true, Err: err}
	}
	return nil
}

// setup 打开通道、声明私有回复队列并启动监听
func (c *Client) setup(conn Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("打开通道失败: %w", err)
	}

	// 独占 + 自动删除：进程退出后队列随之消失
	q, err := ch.QueueDeclare(c.cfg.ReplyQueue, false, true, true, false, nil)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("声明回复队列失败: %w", err)
	}

	tag := "scsc-" + uuid.NewString()
	deliveries, err := ch.Consume(q.Name, tag, true, true, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("订阅回复队列失败: %w", err)
	}

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	done := make(chan struct{})

	c.mu.Lock()
	c.conn = conn
	c.ch = ch
	c.replyQueue = q.Name
	c.consumerTag = tag
	c.listenerDone = done
	c.mu.Unlock()

	go c.listen(deliveries, done)
	go c.watch(conn, closed)

	c.logger.Info("消息队列已连接", zap.String("reply_queue", q.Name))
	return nil
}

// Close 先让所有等待中的调用失败，再拆除消费者、通道与连接
// 关闭后可再次 Connect
func (c *Client) Close() error {
	c.mu.Lock()
	if c.stopReconnect != nil {
		c.stopReconnect()
		c.stopReconnect = nil
	}
	c.mu.Unlock()

	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	c.mu.Lock()
	conn, ch, tag, done := c.conn, c.ch, c.consumerTag, c.listenerDone
	c.clearLocked()
	c.mu.Unlock()

	if n := c.registry.FailAll(ErrConnectionClosing); n > 0 {
		c.logger.Warn("关闭连接时仍有等待中的调用", zap.Int("count", n))
	}
	c.metrics.setPending(0)

	if conn == nil {
		return nil
	}

	var result *multierror.Error
	if err := ch.Cancel(tag, false); err != nil {
		result = multierror.Append(result, fmt.Errorf("取消消费者: %w", err))
	}
	if err := ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		result = multierror.Append(result, fmt.Errorf("关闭通道: %w", err))
	}
	if err := conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		result = multierror.Append(result, fmt.Errorf("关闭连接: %w", err))
	}

	select {
	case <-done:
	case <-time.After(listenerStopTimeout):
		c.logger.Warn("等待回复监听协程退出超时")
	}

	c.logger.Info("消息队列连接已关闭")
	return result.ErrorOrNil()
}

// IsConnected 当前是否持有可用连接
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// Pending 等待回复中的调用数
func (c *Client) Pending() int {
	return c.registry.Len()
}

func (c *Client) clearLocked() {
	c.conn = nil
	c.ch = nil
	c.replyQueue = ""
	c.consumerTag = ""
	c.listenerDone = nil
}

func (c *Client) snapshot() (Channel, string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ch, c.replyQueue, c.ch != nil
}

// ────────────────────── 回复监听 ──────────────────────

// listen 在连接生命周期内消费回复队列，不阻塞任何调用方
func (c *Client) listen(deliveries <-chan amqp.Delivery, done chan struct{}) {
	defer close(done)
	for d := range deliveries {
		c.dispatch(d)
	}
}

func (c *Client) dispatch(d amqp.Delivery) {
	id := d.CorrelationId
	if id == "" {
		id = correlationIDFromBody(d.Body)
	}
	if id == "" {
		c.logger.Debug("丢弃无关联 ID 的回复")
		return
	}

	out, ok := c.registry.Resolve(id, d.Body)
	if !ok {
		// 迟到或不属于本进程的回复，属正常情况
		c.logger.Debug("丢弃未匹配的回复", zap.String("correlation_id", id))
		return
	}
	if out.Err != nil {
		c.logger.Warn("回复解码失败", zap.String("correlation_id", id), zap.Error(out.Err))
	}
	c.metrics.setPending(c.registry.Len())
}

// watch 处理非主动的连接断开
func (c *Client) watch(conn Connection, closed <-chan *amqp.Error) {
	amqpErr, ok := <-closed
	if !ok || amqpErr == nil {
		return
	}

	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.clearLocked()
	ctx, cancel := context.WithCancel(context.Background())
	c.stopReconnect = cancel
	c.mu.Unlock()

	n := c.registry.FailAll(fmt.Errorf("%w: %s", ErrConnectionLost, amqpErr.Reason))
	c.metrics.setPending(0)
	c.logger.Error("消息队列连接意外断开",
		zap.Int("code", amqpErr.Code),
		zap.String("reason", amqpErr.Reason),
		zap.Int("failed_calls", n),
	)

	if !c.cfg.AutoReconnect {
		cancel()
		return
	}
	go func() {
		defer cancel()
		if err := c.Connect(ctx); err != nil {
			c.logger.Error("消息队列自动重连失败", zap.Error(err))
			return
		}
		c.logger.Info("消息队列已自动重连")
	}()
}

// ────────────────────── 调用 ──────────────────────

// Call 发送请求并等待关联回复，返回回复中的 result 字段
// timeout <= 0 时使用配置的默认超时；超时不会撤回已发出的请求
func (c *Client) Call(ctx context.Context, actionCode int, body any, timeout time.Duration) (json.RawMessage, error) {
	ch, replyQueue, ok := c.snapshot()
	if !ok {
		c.metrics.observe(actionCode, "not_connected")
		return nil, ErrNotConnected
	}
	if timeout <= 0 {
		timeout = c.cfg.DefaultTimeout
	}

	id := uuid.NewString()
	payload, err := encodeEnvelope(Envelope{
		ActionCode:    actionCode,
		Body:          body,
		ReplyTo:       replyQueue,
		CorrelationID: id,
	}, c.cfg.MaxBodyBytes)
	if err != nil {
		return nil, err
	}

	wait, err := c.registry.Register(id)
	if err != nil {
		return nil, err
	}
	c.metrics.setPending(c.registry.Len())

	if err := c.publish(ctx, ch, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: id,
		ReplyTo:       replyQueue,
		Body:          payload,
	}); err != nil {
		c.registry.Remove(id)
		c.metrics.setPending(c.registry.Len())
		c.metrics.observe(actionCode, "publish_error")
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-wait:
		c.observeOutcome(actionCode, out.Err)
		return out.Result, out.Err
	case <-timer.C:
		if c.abandon(id) {
			c.metrics.observe(actionCode, "timeout")
			return nil, fmt.Errorf("%w: action=%d timeout=%s", ErrTimeout, actionCode, timeout)
		}
	case <-ctx.Done():
		if c.abandon(id) {
			c.metrics.observe(actionCode, "canceled")
			return nil, ctx.Err()
		}
	}

	// 与超时同时到达的回复已经投递，直接取用
	out := <-wait
	c.observeOutcome(actionCode, out.Err)
	return out.Result, out.Err
}

// CallInto 调用并将 result 解码到 out
func (c *Client) CallInto(ctx context.Context, actionCode int, body any, timeout time.Duration, out any) error {
	result, err := c.Call(ctx, actionCode, body, timeout)
	if err != nil {
		return err
	}
	return DecodeResult(result, out)
}

// CallNoReply 即发即弃：不登记、不带回复队列，发布成功即返回
func (c *Client) CallNoReply(ctx context.Context, actionCode int, body any) error {
	ch, _, ok := c.snapshot()
	if !ok {
		c.metrics.observe(actionCode, "not_connected")
		return ErrNotConnected
	}

	payload, err := encodeEnvelope(Envelope{ActionCode: actionCode, Body: body}, c.cfg.MaxBodyBytes)
	if err != nil {
		return err
	}

	if err := c.publish(ctx, ch, amqp.Publishing{
		ContentType: "application/json",
		Body:        payload,
	}); err != nil {
		c.metrics.observe(actionCode, "publish_error")
		return err
	}
	c.metrics.observe(actionCode, "sent")
	return nil
}

func (c *Client) publish(ctx context.Context, ch Channel, msg amqp.Publishing) error {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	if err := ch.PublishWithContext(ctx, c.cfg.Exchange, c.cfg.RoutingKey, false, false, msg); err != nil {
		c.metrics.publishFailed()
		return &TransportError{Op: "publish", Err: err}
	}
	return nil
}

// abandon 移除等待条目；返回 false 表示回复已先一步解析
func (c *Client) abandon(id string) bool {
	removed := c.registry.Remove(id)
	c.metrics.setPending(c.registry.Len())
	return removed
}

func (c *Client) observeOutcome(actionCode int, err error) {
	var protoErr *ProtocolError
	switch {
	case err == nil:
		c.metrics.observe(actionCode, "ok")
	case errors.As(err, &protoErr):
		c.metrics.observe(actionCode, "protocol_error")
	default:
		c.metrics.observe(actionCode, "failed")
	}
}

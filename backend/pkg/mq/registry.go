package mq

import "sync"

// Registry 关联 ID → 等待中的调用
// 所有操作在同一把锁内完成，调用方不会看到半更新的条目
type Registry struct {
	mu      sync.Mutex
	pending map[string]chan Outcome
}

// NewRegistry 创建空的关联表
func NewRegistry() *Registry {
	return &Registry{pending: make(map[string]chan Outcome)}
}

// Register 在发送请求之前登记，避免回复先于登记到达
func (r *Registry) Register(id string) (<-chan Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pending[id]; exists {
		return nil, ErrDuplicateID
	}
	// 容量 1：监听协程投递时永不阻塞
	ch := make(chan Outcome, 1)
	r.pending[id] = ch
	return ch, nil
}

// Resolve 用回复解析等待者；无匹配或已解析时返回 false
// 解码失败同样视为一次解析，等待者收到 ProtocolError
func (r *Registry) Resolve(id string, payload []byte) (Outcome, bool) {
	ch, ok := r.take(id)
	if !ok {
		return Outcome{}, false
	}
	out := decodeReply(id, payload)
	ch <- out
	return out, true
}

// Fail 以错误结束单个等待者
func (r *Registry) Fail(id string, err error) bool {
	ch, ok := r.take(id)
	if !ok {
		return false
	}
	ch <- Outcome{Err: err}
	return true
}

// Remove 丢弃条目（超时/取消路径）；条目已被解析时返回 false
func (r *Registry) Remove(id string) bool {
	_, ok := r.take(id)
	return ok
}

// FailAll 以同一错误结束全部等待者，返回数量
func (r *Registry) FailAll(err error) int {
	r.mu.Lock()
	drained := r.pending
	r.pending = make(map[string]chan Outcome)
	r.mu.Unlock()

	for _, ch := range drained {
		ch <- Outcome{Err: err}
	}
	return len(drained)
}

// Len 当前等待中的调用数
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *Registry) take(id string) (chan Outcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.pending[id]
	if ok {
		delete(r.pending, id)
	}
	return ch, ok
}

package errors

import "errors"

// 跨层共享的持久化错误，Repository 返回、Service 识别

var (
	// ErrOptimisticLock 条件更新未命中：记录在读取后已被其他操作修改
	ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

	// ErrSingletonMissing 单行表（如 global_status）尚未初始化
	ErrSingletonMissing = errors.New("单行记录不存在")
)

package dto

// ── 全局状态模块 ──

// GlobalStatusResponse 当前全局状态
type GlobalStatusResponse struct {
	Status    string `json:"status"`
	Year      int    `json:"year"`
	Semester  int    `json:"semester"`
	Period    string `json:"period"` // 如 2025-1 / 2025-S
	UpdatedAt string `json:"updated_at"`
}

// UpdateGlobalStatusRequest 切换全局状态请求
type UpdateGlobalStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// GroupFailure 单个小组在学期滚动中失败的记录
type GroupFailure struct {
	GroupID int64  `json:"group_id"`
	Kind    string `json:"kind"`
	Title   string `json:"title"`
	Error   string `json:"error"`
}

// TransitionResult 状态切换结果
type TransitionResult struct {
	From             string         `json:"from"`
	To               string         `json:"to"`
	Year             int            `json:"year"`
	Semester         int            `json:"semester"`
	BackupPath       string         `json:"backup_path"`
	RolloverFailures []GroupFailure `json:"rollover_failures,omitempty"`
}

// BackupResponse 备份记录
type BackupResponse struct {
	ID        int64  `json:"id"`
	Path      string `json:"path"`
	Reason    string `json:"reason"`
	SizeBytes int64  `json:"size_bytes"`
	CreatedAt string `json:"created_at"`
}

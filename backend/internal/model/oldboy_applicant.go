package model

// OldboyApplicant 老会员申请 — 对应 oldboy_applicants
// 进入 inactive 时统一处理，每条只处理一次
type OldboyApplicant struct {
	ID        int64  `gorm:"primaryKey"                             json:"id"`
	UserID    string `gorm:"type:varchar(64);not null;uniqueIndex"  json:"user_id"`
	Processed bool   `gorm:"not null;default:false"                 json:"processed"`
	Timestamps
}

// TableName 指定表名
func (OldboyApplicant) TableName() string { return "oldboy_applicants" }

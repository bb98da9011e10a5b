package model

import "time"

// PolicyEnrollmentGrantUntil 入会资格有效期，值为 {"year":Y,"semester":S}
const PolicyEnrollmentGrantUntil = "enrollment_grant_until"

// PolicyValue 策略键值表 — 对应 policy_values，Value 为 JSON 文本
type PolicyValue struct {
	Key       string    `gorm:"type:varchar(64);primaryKey" json:"key"`
	Value     string    `gorm:"type:text;not null"          json:"value"`
	UpdatedBy *string   `gorm:"type:varchar(64)"            json:"updated_by,omitempty"`
	UpdatedAt time.Time `gorm:"not null"                    json:"updated_at"`
}

// TableName 指定表名
func (PolicyValue) TableName() string { return "policy_values" }

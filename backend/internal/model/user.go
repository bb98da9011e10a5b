package model

// ── 角色等级（数值越大权限越高）──

const (
	RoleNewcomer  = 100
	RoleMember    = 200
	RoleOldboy    = 300
	RoleExecutive = 500
	RolePresident = 1000
)

// ── 用户状态 ──

const (
	UserPending = "pending"
	UserStandby = "standby"
	UserActive  = "active"
	UserBanned  = "banned"
	UserDormant = "dormant"
)

// User 用户表 — 对应 users
type User struct {
	ID        string `gorm:"type:varchar(64);primaryKey"                 json:"id"`
	Name      string `gorm:"type:varchar(100);not null;index"            json:"name"`
	Email     string `gorm:"type:varchar(255);not null;default:''"       json:"email"`
	Phone     string `gorm:"type:varchar(20);not null;default:''"        json:"-"`
	StudentID string `gorm:"type:varchar(20);not null;default:''"        json:"student_id"`
	Role      int    `gorm:"not null;default:100"                        json:"role"`
	Status    string `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	Timestamps
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// IsPrivileged 老会员及以上不参与学期切换时的状态重算
func (u *User) IsPrivileged() bool { return u.Role >= RoleOldboy }

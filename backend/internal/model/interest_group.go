package model

// 兴趣小组类别
const (
	GroupKindSIG = "sig"
	GroupKindPIG = "pig"
)

// GroupKinds 按固定顺序遍历全部类别
var GroupKinds = []string{GroupKindSIG, GroupKindPIG}

// InterestGroup SIG/PIG 统一表 — 对应 interest_groups
type InterestGroup struct {
	ID           int64  `gorm:"primaryKey"                          json:"id"`
	Kind         string `gorm:"type:varchar(8);not null"            json:"kind"`
	Title        string `gorm:"type:varchar(100);not null"          json:"title"`
	Description  string `gorm:"type:text;not null;default:''"       json:"description"`
	Status       string `gorm:"type:varchar(20);not null"           json:"status"`
	Year         int    `gorm:"not null"                            json:"year"`
	Semester     int    `gorm:"not null"                            json:"semester"`
	ShouldExtend bool   `gorm:"not null;default:false"              json:"should_extend"`
	OwnerID      string `gorm:"type:varchar(64);not null"           json:"owner_id"`
	Timestamps
}

// TableName 指定表名
func (InterestGroup) TableName() string { return "interest_groups" }

package service

import (
	"encoding/json"
	"fmt"
)

// Period 学年内的一个学期
// Semester 取 1..4：1 春季、2 夏季短学期、3 秋季、4 冬季短学期
type Period struct {
	Year     int `json:"year"`
	Semester int `json:"semester"`
}

var semesterLabels = [...]string{"", "1", "S", "2", "W"}

// Next 下一个学期；4 之后进入下一年的 1
func (p Period) Next() Period {
	return Period{
		Year:     p.Year + p.Semester/4,
		Semester: p.Semester%4 + 1,
	}
}

// After 严格晚于 o
func (p Period) After(o Period) bool {
	if p.Year != o.Year {
		return p.Year > o.Year
	}
	return p.Semester > o.Semester
}

// Valid semester 必须在 1..4
func (p Period) Valid() bool {
	return p.Semester >= 1 && p.Semester <= 4
}

// Label 对外展示的学期标签，如 2025-1、2025-S、2025-2、2025-W
func (p Period) Label() string {
	if !p.Valid() {
		return fmt.Sprintf("%d-%d", p.Year, p.Semester)
	}
	return fmt.Sprintf("%d-%s", p.Year, semesterLabels[p.Semester])
}

func (p Period) String() string { return p.Label() }

// parsePeriodJSON 解析策略值 {"year":Y,"semester":S}
func parsePeriodJSON(raw string) (Period, error) {
	var p Period
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Period{}, fmt.Errorf("学期格式无效: %w", err)
	}
	if !p.Valid() {
		return Period{}, fmt.Errorf("学期格式无效: semester=%d", p.Semester)
	}
	return p, nil
}

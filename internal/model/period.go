package model

import (
	"fmt"
	"time"
)

// SchedulePeriod 排班周期表 — 对应 schedule_periods
// 日期区间为闭区间；存在版本后仅允许修改名称
type SchedulePeriod struct {
	PeriodID  string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"period_id"`
	Name      string    `gorm:"type:varchar(100);not null"                     json:"name"`
	StartDate time.Time `gorm:"type:date;not null"                             json:"start_date"`
	EndDate   time.Time `gorm:"type:date;not null"                             json:"end_date"`
	VersionedModel
}

// TableName 指定表名
func (SchedulePeriod) TableName() string { return "schedule_periods" }

// Contains 判断日期是否落在周期内（含首尾）
func (p *SchedulePeriod) Contains(d time.Time) bool {
	d = TruncateDate(d)
	return !d.Before(TruncateDate(p.StartDate)) && !d.After(TruncateDate(p.EndDate))
}

// Days 周期内的全部日期
func (p *SchedulePeriod) Days() []time.Time {
	var days []time.Time
	end := TruncateDate(p.EndDate)
	for d := TruncateDate(p.StartDate); !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// MonthRange 返回自然月的首日与末日
func MonthRange(year int, month time.Month) (time.Time, time.Time, error) {
	if month < time.January || month > time.December {
		return time.Time{}, time.Time{}, fmt.Errorf("月份必须在 1-12 之间，实际: %d", month)
	}
	if year < 2000 || year > 2100 {
		return time.Time{}, time.Time{}, fmt.Errorf("年份必须在 2000-2100 之间，实际: %d", year)
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return start, end, nil
}

// MonthName 自然月周期的默认名称，如 "January 2024"
func MonthName(year int, month time.Month) string {
	return fmt.Sprintf("%s %d", month.String(), year)
}

// Package conflict 计算排班版本中的冲突：同一住院医师同日的不兼容重复排班、
// 已批准请假期间的排班，以及新人在限制日期的值班。
//
// 冲突是纯粹的派生数据，每次调用都基于当前排班项重新计算，不做缓存。
package conflict

import (
	"sort"
	"time"

	"github.com/dfberenson/ob-resident-scheduler/internal/model"
	"github.com/dfberenson/ob-resident-scheduler/internal/policy"
)

// Reason 冲突原因
type Reason string

const (
	ReasonDoubleBooked Reason = "DOUBLE_BOOKED"
	ReasonTimeOff      Reason = "TIME_OFF"
	ReasonTier0Call    Reason = "TIER0_CALL"
)

// Key 冲突归并键：住院医师 + 日期
type Key struct {
	ResidentID string
	Date       time.Time
}

// NewKey 构造归并键，日期统一截断为 UTC 零点
func NewKey(residentID string, date time.Time) Key {
	return Key{ResidentID: residentID, Date: model.TruncateDate(date)}
}

// Conflict 同一住院医师同一天的全部冲突
type Conflict struct {
	ResidentID    string
	Date          time.Time
	AssignmentIDs []string
	Reasons       []Reason
}

// Key 返回冲突的归并键
func (c Conflict) Key() Key { return NewKey(c.ResidentID, c.Date) }

// Input 冲突检测输入
// TimeOff 中未批准的请假会被忽略；Residents 用于识别新人
type Input struct {
	Assignments []model.Assignment
	TimeOff     []model.TimeOffBlock
	Residents   []model.Resident
	Policy      *policy.Policy
}

type finding struct {
	ids     map[string]bool
	reasons map[Reason]bool
}

// Detect 计算冲突列表，按日期、住院医师 ID 排序
func Detect(in Input) []Conflict {
	groups := make(map[Key][]model.Assignment)
	for _, a := range in.Assignments {
		k := NewKey(a.ResidentID, a.Date)
		groups[k] = append(groups[k], a)
	}

	timeOff := make(map[string][]model.TimeOffBlock)
	for _, b := range in.TimeOff {
		if b.Approved {
			timeOff[b.ResidentID] = append(timeOff[b.ResidentID], b)
		}
	}

	tier0 := make(map[string]bool)
	for _, r := range in.Residents {
		if r.OBMonthsCompleted == 0 {
			tier0[r.ResidentID] = true
		}
	}

	findings := make(map[Key]*finding)
	flag := func(k Key, id string, reason Reason) {
		f, ok := findings[k]
		if !ok {
			f = &finding{ids: make(map[string]bool), reasons: make(map[Reason]bool)}
			findings[k] = f
		}
		f.ids[id] = true
		f.reasons[reason] = true
	}

	for k, group := range groups {
		// 重复排班：组内任意一对不兼容班次都算冲突
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				if in.Policy.Compatible(group[i].ShiftType, group[j].ShiftType) {
					continue
				}
				flag(k, group[i].AssignmentID, ReasonDoubleBooked)
				flag(k, group[j].AssignmentID, ReasonDoubleBooked)
			}
		}

		for _, a := range group {
			if !in.Policy.TimeOffExempted(a.ShiftType) {
				for _, b := range timeOff[a.ResidentID] {
					if b.Covers(a.Date) {
						flag(k, a.AssignmentID, ReasonTimeOff)
						break
					}
				}
			}
			if tier0[a.ResidentID] && in.Policy.Tier0Prohibited(k.Date, a.ShiftType) {
				flag(k, a.AssignmentID, ReasonTier0Call)
			}
		}
	}

	result := make([]Conflict, 0, len(findings))
	for k, f := range findings {
		c := Conflict{ResidentID: k.ResidentID, Date: k.Date}
		for id := range f.ids {
			c.AssignmentIDs = append(c.AssignmentIDs, id)
		}
		sort.Strings(c.AssignmentIDs)
		for r := range f.reasons {
			c.Reasons = append(c.Reasons, r)
		}
		sort.Slice(c.Reasons, func(i, j int) bool { return c.Reasons[i] < c.Reasons[j] })
		result = append(result, c)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].ResidentID < result[j].ResidentID
	})
	return result
}

// Affecting 筛选落在给定键上的冲突，保持原有顺序
func Affecting(conflicts []Conflict, keys ...Key) []Conflict {
	want := make(map[Key]bool, len(keys))
	for _, k := range keys {
		want[NewKey(k.ResidentID, k.Date)] = true
	}
	var out []Conflict
	for _, c := range conflicts {
		if want[c.Key()] {
			out = append(out, c)
		}
	}
	return out
}

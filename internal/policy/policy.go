// Package policy 描述冲突检测所依赖的策略数据：班次兼容关系、请假豁免班次与新人值班限制。
// 策略不写死在代码里，默认值来自内嵌 YAML，并由周期的求解约束配置覆盖。
package policy

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dfberenson/ob-resident-scheduler/internal/model"
)

//go:embed default.yaml
var defaultYAML []byte

// Tier0Rule 新人值班限制
type Tier0Rule struct {
	Days   []int             `yaml:"days"   json:"days"`
	Shifts []model.ShiftType `yaml:"shifts" json:"shifts"`
}

// Policy 冲突检测策略
type Policy struct {
	CompatibleShifts [][]model.ShiftType `yaml:"compatible_shifts"      json:"compatible_shifts"`
	TimeOffExempt    []model.ShiftType   `yaml:"time_off_exempt"        json:"time_off_exempt"`
	Tier0            Tier0Rule           `yaml:"tier0_call_prohibition" json:"tier0_call_prohibition"`

	compatible map[[2]model.ShiftType]bool
	exempt     map[model.ShiftType]bool
	tier0Days  map[int]bool
	tier0Shift map[model.ShiftType]bool
}

// overlay 约束配置中的可选覆盖字段；未出现的字段保持默认
type overlay struct {
	CompatibleShifts *[][]model.ShiftType `json:"compatible_shifts"`
	TimeOffExempt    *[]model.ShiftType   `json:"time_off_exempt"`
	Tier0            *struct {
		Days   *[]int             `json:"days"`
		Shifts *[]model.ShiftType `json:"shifts"`
	} `json:"tier0_call_prohibition"`
}

// Default 返回内嵌默认策略
func Default() (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(defaultYAML, &p); err != nil {
		return nil, fmt.Errorf("解析默认策略失败: %w", err)
	}
	if err := p.compile(); err != nil {
		return nil, err
	}
	return &p, nil
}

// FromConstraints 以默认策略为基础，叠加求解约束配置中的策略字段
// raw 为空时直接返回默认策略
func FromConstraints(raw []byte) (*Policy, error) {
	p, err := Default()
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return p, nil
	}

	var o overlay
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, fmt.Errorf("解析约束配置失败: %w", err)
	}
	if o.CompatibleShifts != nil {
		p.CompatibleShifts = *o.CompatibleShifts
	}
	if o.TimeOffExempt != nil {
		p.TimeOffExempt = *o.TimeOffExempt
	}
	if o.Tier0 != nil {
		if o.Tier0.Days != nil {
			p.Tier0.Days = *o.Tier0.Days
		}
		if o.Tier0.Shifts != nil {
			p.Tier0.Shifts = *o.Tier0.Shifts
		}
	}

	if err := p.compile(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Policy) compile() error {
	p.compatible = make(map[[2]model.ShiftType]bool, len(p.CompatibleShifts)*2)
	for _, pair := range p.CompatibleShifts {
		if len(pair) != 2 {
			return fmt.Errorf("兼容班次对必须恰好包含 2 个班次，实际: %v", pair)
		}
		for _, s := range pair {
			if !s.Valid() {
				return fmt.Errorf("兼容班次对包含未知班次 %q", s)
			}
		}
		p.compatible[[2]model.ShiftType{pair[0], pair[1]}] = true
		p.compatible[[2]model.ShiftType{pair[1], pair[0]}] = true
	}

	p.exempt = make(map[model.ShiftType]bool, len(p.TimeOffExempt))
	for _, s := range p.TimeOffExempt {
		if !s.Valid() {
			return fmt.Errorf("请假豁免包含未知班次 %q", s)
		}
		p.exempt[s] = true
	}

	p.tier0Days = make(map[int]bool, len(p.Tier0.Days))
	for _, d := range p.Tier0.Days {
		if d < 1 || d > 31 {
			return fmt.Errorf("新人值班限制日期必须在 1-31 之间，实际: %d", d)
		}
		p.tier0Days[d] = true
	}
	p.tier0Shift = make(map[model.ShiftType]bool, len(p.Tier0.Shifts))
	for _, s := range p.Tier0.Shifts {
		if !s.Valid() {
			return fmt.Errorf("新人值班限制包含未知班次 %q", s)
		}
		p.tier0Shift[s] = true
	}
	return nil
}

// Compatible 两个班次能否由同一人在同一天共存
func (p *Policy) Compatible(a, b model.ShiftType) bool {
	return p.compatible[[2]model.ShiftType{a, b}]
}

// TimeOffExempted 班次是否豁免请假冲突
func (p *Policy) TimeOffExempted(s model.ShiftType) bool {
	return p.exempt[s]
}

// Tier0Prohibited 新人在该日期是否禁止该班次
func (p *Policy) Tier0Prohibited(day time.Time, s model.ShiftType) bool {
	return p.tier0Days[day.Day()] && p.tier0Shift[s]
}

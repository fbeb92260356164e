package errors

import (
	"errors"
	"fmt"
)

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ── 排班版本生命周期错误分类 ──

var (
	ErrInvalidPeriod      = errors.New("排班周期无效或输入数据未就绪")
	ErrPeriodNotFound     = errors.New("排班周期不存在")
	ErrUnknownJob         = errors.New("生成任务不存在或已过期")
	ErrJobQueueFull       = errors.New("生成任务队列已满")
	ErrVersionNotFound    = errors.New("排班版本不存在")
	ErrAlreadyPublished   = errors.New("排班版本已发布")
	ErrInvalidTransition  = errors.New("排班版本状态不允许此操作")
	ErrVersionNotEditable = errors.New("排班版本已被取代，不可修改")
	ErrConcurrentPublish  = errors.New("同一周期存在并发发布")
	ErrAssignmentNotFound = errors.New("排班项不存在")
	ErrInvalidAssignment  = errors.New("排班项无效")
	ErrDateOutOfRange     = errors.New("日期超出排班周期范围")
	ErrUnknownShiftType   = errors.New("未知班次类型")
	ErrGeneratorFailure   = errors.New("排班生成失败")
	ErrTimeout            = errors.New("排班生成超时")
)

// kinds 错误分类 → 客户端可识别的 kind 字符串
var kinds = []struct {
	err  error
	kind string
}{
	{ErrInvalidPeriod, "InvalidPeriod"},
	{ErrPeriodNotFound, "PeriodNotFound"},
	{ErrUnknownJob, "UnknownJob"},
	{ErrJobQueueFull, "JobQueueFull"},
	{ErrVersionNotFound, "VersionNotFound"},
	{ErrAlreadyPublished, "AlreadyPublished"},
	{ErrInvalidTransition, "InvalidTransition"},
	{ErrVersionNotEditable, "VersionNotEditable"},
	{ErrConcurrentPublish, "ConcurrentPublishConflict"},
	{ErrAssignmentNotFound, "AssignmentNotFound"},
	{ErrInvalidAssignment, "InvalidAssignment"},
	{ErrDateOutOfRange, "DateOutOfRange"},
	{ErrUnknownShiftType, "UnknownShiftType"},
	{ErrGeneratorFailure, "GeneratorFailure"},
	{ErrTimeout, "Timeout"},
	{ErrOptimisticLock, "OptimisticLock"},
}

// KindOf 返回错误所属分类名；未分类错误返回 "Internal"
func KindOf(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "Internal"
}

// DetailError 携带出错实体 ID 与字段的分类错误
// errors.Is 同时匹配 Kind 与 Cause
type DetailError struct {
	Kind  error
	ID    string
	Field string
	Cause error
}

func (e *DetailError) Error() string {
	msg := e.Kind.Error()
	if e.ID != "" {
		msg += fmt.Sprintf(" (id=%s)", e.ID)
	}
	if e.Field != "" {
		msg += fmt.Sprintf(" (field=%s)", e.Field)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *DetailError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// WithDetail 构造带实体 ID 与字段的分类错误
func WithDetail(kind error, id, field string) error {
	return &DetailError{Kind: kind, ID: id, Field: field}
}

// Wrap 将底层错误归入指定分类
func Wrap(kind error, id string, cause error) error {
	return &DetailError{Kind: kind, ID: id, Cause: cause}
}

// Detail 错误详情（供 API 响应 details 字段使用）
type Detail struct {
	Kind  string `json:"kind"`
	ID    string `json:"id,omitempty"`
	Field string `json:"field,omitempty"`
}

// DetailOf 提取错误的结构化详情
func DetailOf(err error) Detail {
	d := Detail{Kind: KindOf(err)}
	var de *DetailError
	if errors.As(err, &de) {
		d.ID = de.ID
		d.Field = de.Field
	}
	return d
}

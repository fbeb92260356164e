package dto

import "encoding/json"

// ── 排班版本 DTO ──

// VersionResponse 版本信息响应
type VersionResponse struct {
	ID             string          `json:"id"`
	PeriodID       string          `json:"period_id"`
	Status         string          `json:"status"`
	CreatedAt      string          `json:"created_at"`
	PublishedAt    *string         `json:"published_at,omitempty"`
	SupersededAt   *string         `json:"superseded_at,omitempty"`
	FairnessReport json.RawMessage `json:"fairness_report,omitempty"`
	UnmetRequests  json.RawMessage `json:"unmet_requests,omitempty"`
}

// PublishResponse 发布结果：新发布版本与被取代的旧版本
type PublishResponse struct {
	Published  VersionResponse   `json:"published"`
	Superseded []VersionResponse `json:"superseded"`
}

// AlertResponse 求解告警
type AlertResponse struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// ConflictResponse 同一住院医师同一天的冲突
type ConflictResponse struct {
	ResidentID    string   `json:"resident_id"`
	Date          string   `json:"date"`
	AssignmentIDs []string `json:"assignment_ids"`
	Reasons       []string `json:"reasons"`
}

// ValidationResponse 版本校验汇总
type ValidationResponse struct {
	VersionID     string             `json:"version_id"`
	Status        string             `json:"status"`
	Conflicts     []ConflictResponse `json:"conflicts"`
	Alerts        []AlertResponse    `json:"alerts"`
	Fairness      json.RawMessage    `json:"fairness"`
	UnmetRequests json.RawMessage    `json:"unmet_requests"`
}

// ExportRequest 导出参数
type ExportRequest struct {
	Format     string `form:"format"      binding:"required,oneof=xlsx ics"`
	ResidentID string `form:"resident_id" binding:"omitempty,uuid"`
}

package dto

// ── 排班项 DTO ──

// UpdateAssignmentRequest 排班项部分更新请求，未提供的字段保持不变
type UpdateAssignmentRequest struct {
	ResidentID *string `json:"resident_id" binding:"omitempty,uuid"`
	Date       *string `json:"date"` // "2024-01-15"
	ShiftType  *string `json:"shift_type"  binding:"omitempty,shift_type"`
}

// AssignmentResponse 排班项响应
type AssignmentResponse struct {
	ID         string `json:"id"`
	VersionID  string `json:"version_id"`
	ResidentID string `json:"resident_id"`
	Date       string `json:"date"`
	ShiftType  string `json:"shift_type"`
	Version    int    `json:"version"`
}

// UpdateAssignmentResponse 更新结果与受影响的冲突
// Conflicts 仅包含变更前后涉及的 (住院医师, 日期) 上的当前冲突；冲突检测失败时省略
type UpdateAssignmentResponse struct {
	Assignment AssignmentResponse `json:"assignment"`
	Conflicts  []ConflictResponse `json:"conflicts,omitempty"`
}

// HistoryEntryResponse 排班项变更历史
type HistoryEntryResponse struct {
	ID            string `json:"id"`
	AssignmentID  string `json:"assignment_id"`
	ChangedAt     string `json:"changed_at"`
	OldResidentID string `json:"old_resident_id"`
	NewResidentID string `json:"new_resident_id"`
	OldDate       string `json:"old_date"`
	NewDate       string `json:"new_date"`
	OldShiftType  string `json:"old_shift_type"`
	NewShiftType  string `json:"new_shift_type"`
}

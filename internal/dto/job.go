package dto

// ── 生成任务 DTO ──

// GenerateResponse 提交生成任务响应
type GenerateResponse struct {
	JobID string `json:"job_id"`
}

// WaitJobRequest 长轮询参数（秒）
type WaitJobRequest struct {
	Timeout int `form:"timeout" binding:"omitempty,min=1,max=60"`
}

// JobErrorResponse 任务失败信息
type JobErrorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// JobResponse 任务状态响应
type JobResponse struct {
	ID         string            `json:"id"`
	PeriodID   string            `json:"period_id"`
	Status     string            `json:"status"`
	VersionID  string            `json:"version_id,omitempty"`
	Error      *JobErrorResponse `json:"error,omitempty"`
	CreatedAt  string            `json:"created_at"`
	StartedAt  *string           `json:"started_at,omitempty"`
	FinishedAt *string           `json:"finished_at,omitempty"`
}

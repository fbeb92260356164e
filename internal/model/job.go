package model

import "time"

// JobStatus 生成任务状态
type JobStatus string

const (
	JobPending JobStatus = "PENDING"
	JobRunning JobStatus = "RUNNING"
	JobSuccess JobStatus = "SUCCESS"
	JobFailure JobStatus = "FAILURE"
)

// Terminal 是否为终态
func (s JobStatus) Terminal() bool {
	return s == JobSuccess || s == JobFailure
}

// CanTransitionTo 任务状态只能前进：PENDING → RUNNING → 终态，PENDING 也可直接失败
func (s JobStatus) CanTransitionTo(to JobStatus) bool {
	switch s {
	case JobPending:
		return to == JobRunning || to == JobFailure
	case JobRunning:
		return to.Terminal()
	default:
		return false
	}
}

// JobError 任务失败摘要
type JobError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// GenerationJob 排班生成任务（不落库，保存在任务存储中）
type GenerationJob struct {
	JobID      string     `json:"job_id"`
	PeriodID   string     `json:"period_id"`
	Status     JobStatus  `json:"status"`
	VersionID  string     `json:"version_id,omitempty"`
	Error      *JobError  `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

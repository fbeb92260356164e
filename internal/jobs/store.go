// Package jobs 跟踪异步排班生成任务：提交、轮询、订阅与超时回收。
package jobs

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/dfberenson/ob-resident-scheduler/internal/model"
	pkgerrors "github.com/dfberenson/ob-resident-scheduler/pkg/errors"
)

// Store 任务状态存储
// Update 为原子读-改-写：fn 返回错误时不写入并原样返回该错误
type Store interface {
	Create(ctx context.Context, job *model.GenerationJob) error
	Get(ctx context.Context, jobID string) (*model.GenerationJob, error)
	Update(ctx context.Context, jobID string, fn func(job *model.GenerationJob) error) (*model.GenerationJob, error)
	// Active 返回全部未进入终态的任务
	Active(ctx context.Context) ([]*model.GenerationJob, error)
	// Purge 删除 finishedBefore 之前结束的终态任务，返回删除数量
	Purge(ctx context.Context, finishedBefore time.Time) (int, error)
}

// ════════════════════════════════════════════════════════════
// MemoryStore
// ════════════════════════════════════════════════════════════

// MemoryStore 进程内任务存储
type MemoryStore struct {
	jobs *xsync.Map[string, model.GenerationJob]
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore 创建进程内任务存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: xsync.NewMap[string, model.GenerationJob]()}
}

func (s *MemoryStore) Create(_ context.Context, job *model.GenerationJob) error {
	s.jobs.Store(job.JobID, *job)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, jobID string) (*model.GenerationJob, error) {
	job, ok := s.jobs.Load(jobID)
	if !ok {
		return nil, pkgerrors.WithDetail(pkgerrors.ErrUnknownJob, jobID, "job_id")
	}
	return &job, nil
}

func (s *MemoryStore) Update(_ context.Context, jobID string, fn func(job *model.GenerationJob) error) (*model.GenerationJob, error) {
	var (
		fnErr   error
		updated model.GenerationJob
	)
	s.jobs.Compute(jobID, func(old model.GenerationJob, loaded bool) (model.GenerationJob, xsync.ComputeOp) {
		if !loaded {
			fnErr = pkgerrors.WithDetail(pkgerrors.ErrUnknownJob, jobID, "job_id")
			return old, xsync.CancelOp
		}
		next := old
		if err := fn(&next); err != nil {
			fnErr = err
			return old, xsync.CancelOp
		}
		updated = next
		return next, xsync.UpdateOp
	})
	if fnErr != nil {
		return nil, fnErr
	}
	return &updated, nil
}

func (s *MemoryStore) Active(_ context.Context) ([]*model.GenerationJob, error) {
	var out []*model.GenerationJob
	s.jobs.Range(func(_ string, job model.GenerationJob) bool {
		if !job.Status.Terminal() {
			j := job
			out = append(out, &j)
		}
		return true
	})
	return out, nil
}

func (s *MemoryStore) Purge(_ context.Context, finishedBefore time.Time) (int, error) {
	purged := 0
	s.jobs.Range(func(id string, job model.GenerationJob) bool {
		if job.Status.Terminal() && job.FinishedAt != nil && job.FinishedAt.Before(finishedBefore) {
			s.jobs.Delete(id)
			purged++
		}
		return true
	})
	return purged, nil
}

// Len 当前保存的任务数
func (s *MemoryStore) Len() int {
	return s.jobs.Size()
}

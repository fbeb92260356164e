package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dfberenson/ob-resident-scheduler/internal/model"
	pkgerrors "github.com/dfberenson/ob-resident-scheduler/pkg/errors"
	"github.com/dfberenson/ob-resident-scheduler/pkg/redis"
)

const (
	jobKeyPrefix  = "ob_scheduler:jobs:"
	activeJobsKey = "ob_scheduler:jobs:active"
)

// RedisStore 基于 Redis 的任务存储，多实例共享任务状态
// 未结束任务的 TTL 为 ceiling+retention，进入终态后重置为 retention
type RedisStore struct {
	rdb       *redis.Client
	ceiling   time.Duration
	retention time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore 创建 Redis 任务存储
func NewRedisStore(rdb *redis.Client, ceiling, retention time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ceiling: ceiling, retention: retention}
}

func jobKey(jobID string) string { return jobKeyPrefix + jobID }

func (s *RedisStore) ttlFor(job *model.GenerationJob) time.Duration {
	if job.Status.Terminal() {
		return s.retention
	}
	return s.ceiling + s.retention
}

func (s *RedisStore) Create(ctx context.Context, job *model.GenerationJob) error {
	if err := s.rdb.SetJSON(ctx, jobKey(job.JobID), job, s.ttlFor(job)); err != nil {
		return fmt.Errorf("保存任务失败: %w", err)
	}
	return s.rdb.AddMember(ctx, activeJobsKey, job.JobID)
}

func (s *RedisStore) Get(ctx context.Context, jobID string) (*model.GenerationJob, error) {
	var job model.GenerationJob
	if err := s.rdb.GetJSON(ctx, jobKey(jobID), &job); err != nil {
		if errors.Is(err, redis.ErrNotFound) {
			return nil, pkgerrors.WithDetail(pkgerrors.ErrUnknownJob, jobID, "job_id")
		}
		return nil, err
	}
	return &job, nil
}

func (s *RedisStore) Update(ctx context.Context, jobID string, fn func(job *model.GenerationJob) error) (*model.GenerationJob, error) {
	var updated model.GenerationJob
	err := s.rdb.UpdateJSON(ctx, jobKey(jobID), func(raw []byte) (interface{}, time.Duration, error) {
		var job model.GenerationJob
		if err := json.Unmarshal(raw, &job); err != nil {
			return nil, 0, fmt.Errorf("解析任务失败: %w", err)
		}
		if err := fn(&job); err != nil {
			return nil, 0, err
		}
		updated = job
		return &job, s.ttlFor(&job), nil
	})
	if err != nil {
		if errors.Is(err, redis.ErrNotFound) {
			return nil, pkgerrors.WithDetail(pkgerrors.ErrUnknownJob, jobID, "job_id")
		}
		return nil, err
	}

	if updated.Status.Terminal() {
		_ = s.rdb.RemoveMember(ctx, activeJobsKey, jobID)
	}
	return &updated, nil
}

func (s *RedisStore) Active(ctx context.Context) ([]*model.GenerationJob, error) {
	ids, err := s.rdb.Members(ctx, activeJobsKey)
	if err != nil {
		return nil, err
	}

	var out []*model.GenerationJob
	for _, id := range ids {
		job, err := s.Get(ctx, id)
		if errors.Is(err, pkgerrors.ErrUnknownJob) {
			_ = s.rdb.RemoveMember(ctx, activeJobsKey, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if job.Status.Terminal() {
			_ = s.rdb.RemoveMember(ctx, activeJobsKey, id)
			continue
		}
		out = append(out, job)
	}
	return out, nil
}

// Purge 终态任务由 TTL 自动过期，此处无需删除
func (s *RedisStore) Purge(context.Context, time.Time) (int, error) {
	return 0, nil
}

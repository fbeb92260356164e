package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfberenson/ob-resident-scheduler/internal/model"
	pkgerrors "github.com/dfberenson/ob-resident-scheduler/pkg/errors"
)

func TestMemoryStore_UpdateAbortLeavesJobUntouched(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, &model.GenerationJob{JobID: "j-1", Status: model.JobPending}))

	_, err := s.Update(ctx, "j-1", func(j *model.GenerationJob) error {
		j.Status = model.JobRunning
		return errStale
	})
	assert.True(t, errors.Is(err, errStale))

	got, err := s.Get(ctx, "j-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobPending, got.Status)

	_, err = s.Update(ctx, "missing", func(*model.GenerationJob) error { return nil })
	assert.True(t, errors.Is(err, pkgerrors.ErrUnknownJob))
}

func TestMemoryStore_ConcurrentTransitionsSingleWinner(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, &model.GenerationJob{JobID: "j-1", Status: model.JobRunning}))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, "j-1", func(j *model.GenerationJob) error {
				if j.Status.Terminal() {
					return errStale
				}
				now := time.Now()
				j.Status = model.JobSuccess
				j.FinishedAt = &now
				return nil
			})
			if err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}

func TestMemoryStore_ActiveAndPurge(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Create(ctx, &model.GenerationJob{JobID: "a", Status: model.JobPending}))
	require.NoError(t, s.Create(ctx, &model.GenerationJob{JobID: "b", Status: model.JobRunning}))
	require.NoError(t, s.Create(ctx, &model.GenerationJob{JobID: "c", Status: model.JobSuccess, FinishedAt: &old}))

	active, err := s.Active(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	n, err := s.Purge(ctx, old.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, s.Len())
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/dfberenson/ob-resident-scheduler/internal/model"
	pkgerrors "github.com/dfberenson/ob-resident-scheduler/pkg/errors"
)

// ════════════════════════════════════════════════════════════
// InputResolver
// ════════════════════════════════════════════════════════════

func TestInputResolver_Resolve(t *testing.T) {
	svc, db := setupTestService()
	p := db.addPeriod("2024-01-01", "2024-01-31")
	r := db.addResident("Riley", 1)
	db.addTimeOff(r, "2024-01-12", "2024-01-13")
	db.addTimeOff(r, "2024-03-01", "2024-03-02")
	db.addHoliday("2024-01-01", boolPtr(true))
	db.addHoliday("2024-01-15", boolPtr(false))
	db.addHoliday("2024-02-19", nil)
	start, _ := model.ParseDate("2024-01-20")
	db.requests = append(db.requests, model.ResidentRequest{
		RequestID: "req-1", ResidentID: r, RequestType: model.RequestAvoidCall,
		StartDate: start, EndDate: start, Approved: true,
	})
	db.constraints[""] = &model.SolverConstraints{ConstraintsID: "global", Config: datatypes.JSON(`{"time_off_exempt": ["BT_V"]}`)}

	in, err := svc.Inputs.Resolve(context.Background(), p.PeriodID)
	if err != nil {
		t.Fatalf("组装输入失败: %v", err)
	}
	if in.StartDate != "2024-01-01" || in.EndDate != "2024-01-31" {
		t.Errorf("周期日期不符: %s ~ %s", in.StartDate, in.EndDate)
	}
	if len(in.Residents) != 1 || in.Residents[0].ID != r || in.Residents[0].OBMonthsCompleted != 1 {
		t.Errorf("住院医师不符: %+v", in.Residents)
	}
	if len(in.TimeOff) != 1 || in.TimeOff[0].StartDate != "2024-01-12" {
		t.Errorf("期望只包含周期内的请假，实际: %+v", in.TimeOff)
	}
	if len(in.Holidays) != 1 || in.Holidays[0] != "2024-01-01" {
		t.Errorf("期望只包含确认放假的日期，实际: %v", in.Holidays)
	}
	if len(in.Requests) != 1 || in.Requests[0].RequestType != "AVOID_CALL" {
		t.Errorf("申请不符: %+v", in.Requests)
	}
	if string(in.Constraints) != `{"time_off_exempt": ["BT_V"]}` {
		t.Errorf("约束不符: %s", in.Constraints)
	}
}

func TestInputResolver_UnconfirmedHoliday(t *testing.T) {
	svc, db := setupTestService()
	p := db.addPeriod("2024-01-01", "2024-01-31")
	db.addResident("Riley", 1)
	db.addHoliday("2024-01-15", nil)

	_, err := svc.Inputs.Resolve(context.Background(), p.PeriodID)
	assertDetail(t, err, pkgerrors.ErrInvalidPeriod, "2024-01-15", "hospital_holiday")
}

func TestInputResolver_Rejections(t *testing.T) {
	svc, db := setupTestService()
	empty := db.addPeriod("2024-01-01", "2024-01-31")

	_, err := svc.Inputs.Resolve(context.Background(), empty.PeriodID)
	assertDetail(t, err, pkgerrors.ErrInvalidPeriod, empty.PeriodID, "residents")

	_, err = svc.Inputs.Resolve(context.Background(), "missing")
	assertDetail(t, err, pkgerrors.ErrInvalidPeriod, "missing", "period_id")

	db.addResident("Riley", 1)
	db.constraints[""] = &model.SolverConstraints{ConstraintsID: "global", Config: datatypes.JSON(`not-json`)}
	_, err = svc.Inputs.Resolve(context.Background(), empty.PeriodID)
	assertDetail(t, err, pkgerrors.ErrInvalidPeriod, "global", "config")
}

// ════════════════════════════════════════════════════════════
// GenerationService
// ════════════════════════════════════════════════════════════

type fakeTracker struct {
	jobs      map[string]*model.GenerationJob
	submitErr error
	deadline  bool
}

func (f *fakeTracker) Submit(_ context.Context, periodID string) (*model.GenerationJob, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	job := &model.GenerationJob{JobID: "job-" + periodID, PeriodID: periodID, Status: model.JobPending, CreatedAt: time.Now()}
	f.jobs[job.JobID] = job
	return job, nil
}

func (f *fakeTracker) Poll(_ context.Context, jobID string) (*model.GenerationJob, error) {
	if j, ok := f.jobs[jobID]; ok {
		return j, nil
	}
	return nil, pkgerrors.WithDetail(pkgerrors.ErrUnknownJob, jobID, "job_id")
}

func (f *fakeTracker) Wait(ctx context.Context, jobID string) (*model.GenerationJob, error) {
	_, f.deadline = ctx.Deadline()
	return f.Poll(ctx, jobID)
}

func TestGenerationService(t *testing.T) {
	tracker := &fakeTracker{jobs: make(map[string]*model.GenerationJob)}
	svc := NewGenerationService(tracker, zap.NewNop())
	ctx := context.Background()

	resp, err := svc.Generate(ctx, "p-1")
	if err != nil {
		t.Fatalf("提交失败: %v", err)
	}
	if resp.JobID != "job-p-1" {
		t.Errorf("期望 job-p-1，实际: %s", resp.JobID)
	}

	job, err := svc.JobStatus(ctx, resp.JobID)
	if err != nil || job.Status != "PENDING" || job.PeriodID != "p-1" {
		t.Errorf("任务状态不符: %+v, %v", job, err)
	}

	if _, err := svc.WaitJob(ctx, resp.JobID, time.Second); err != nil {
		t.Errorf("长轮询失败: %v", err)
	}
	if !tracker.deadline {
		t.Error("期望长轮询带超时")
	}

	_, err = svc.JobStatus(ctx, "nope")
	if !errors.Is(err, pkgerrors.ErrUnknownJob) {
		t.Errorf("期望 ErrUnknownJob，实际: %v", err)
	}

	tracker.submitErr = pkgerrors.ErrJobQueueFull
	_, err = svc.Generate(ctx, "p-2")
	if !errors.Is(err, pkgerrors.ErrJobQueueFull) {
		t.Errorf("期望 ErrJobQueueFull，实际: %v", err)
	}
}

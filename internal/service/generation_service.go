package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dfberenson/ob-resident-scheduler/internal/dto"
	"github.com/dfberenson/ob-resident-scheduler/internal/generator"
	"github.com/dfberenson/ob-resident-scheduler/internal/model"
	"github.com/dfberenson/ob-resident-scheduler/internal/repository"
	pkgerrors "github.com/dfberenson/ob-resident-scheduler/pkg/errors"
)

// JobTracker 生成任务追踪器
type JobTracker interface {
	Submit(ctx context.Context, periodID string) (*model.GenerationJob, error)
	Poll(ctx context.Context, jobID string) (*model.GenerationJob, error)
	Wait(ctx context.Context, jobID string) (*model.GenerationJob, error)
}

// GenerationService 排班生成业务接口
type GenerationService interface {
	Generate(ctx context.Context, periodID string) (*dto.GenerateResponse, error)
	JobStatus(ctx context.Context, jobID string) (*dto.JobResponse, error)
	// WaitJob 长轮询：任务进入终态或超时后返回当前状态
	WaitJob(ctx context.Context, jobID string, timeout time.Duration) (*dto.JobResponse, error)
}

type generationService struct {
	tracker JobTracker
	logger  *zap.Logger
}

// NewGenerationService 创建 GenerationService 实例
func NewGenerationService(tracker JobTracker, logger *zap.Logger) GenerationService {
	return &generationService{tracker: tracker, logger: logger}
}

func (s *generationService) Generate(ctx context.Context, periodID string) (*dto.GenerateResponse, error) {
	job, err := s.tracker.Submit(ctx, periodID)
	if err != nil {
		return nil, err
	}
	return &dto.GenerateResponse{JobID: job.JobID}, nil
}

func (s *generationService) JobStatus(ctx context.Context, jobID string) (*dto.JobResponse, error) {
	job, err := s.tracker.Poll(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return toJobResponse(job), nil
}

func (s *generationService) WaitJob(ctx context.Context, jobID string, timeout time.Duration) (*dto.JobResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	job, err := s.tracker.Wait(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return toJobResponse(job), nil
}

// ════════════════════════════════════════════════════════════
// InputResolver 汇总周期的求解输入
// ════════════════════════════════════════════════════════════

// InputResolver 从输入库读取周期的求解输入
type InputResolver struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewInputResolver 创建 InputResolver
func NewInputResolver(repo *repository.Repository, logger *zap.Logger) *InputResolver {
	return &InputResolver{repo: repo, logger: logger}
}

// Resolve 校验并组装求解输入
// 周期不存在、存在未确认的节假日、没有住院医师或约束配置无法解析时返回 ErrInvalidPeriod
func (r *InputResolver) Resolve(ctx context.Context, periodID string) (*generator.Input, error) {
	if err := requireID(periodID, pkgerrors.ErrInvalidPeriod, "period_id"); err != nil {
		return nil, err
	}
	period, err := r.repo.Period.GetByID(ctx, periodID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.WithDetail(pkgerrors.ErrInvalidPeriod, periodID, "period_id")
		}
		return nil, err
	}

	holidays, err := r.repo.Input.ListHolidays(ctx, period.StartDate, period.EndDate)
	if err != nil {
		return nil, err
	}
	confirmed := make([]string, 0, len(holidays))
	for i := range holidays {
		h := &holidays[i]
		if !h.Confirmed() {
			return nil, pkgerrors.WithDetail(pkgerrors.ErrInvalidPeriod, model.FormatDate(h.Date), "hospital_holiday")
		}
		if *h.HospitalHoliday {
			confirmed = append(confirmed, model.FormatDate(h.Date))
		}
	}

	var constraints []byte
	c, err := r.repo.Input.GetConstraints(ctx, periodID)
	switch {
	case err == nil:
		constraints = c.Config
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, err
	}
	// 约束必须能被冲突检测解析，否则后续校验结果不可信
	if _, err := loadPolicy(ctx, r.repo, periodID); err != nil {
		return nil, err
	}

	residents, err := r.repo.Input.ListResidents(ctx)
	if err != nil {
		return nil, err
	}
	if len(residents) == 0 {
		return nil, pkgerrors.WithDetail(pkgerrors.ErrInvalidPeriod, periodID, "residents")
	}
	requests, err := r.repo.Input.ListApprovedRequests(ctx, period.StartDate, period.EndDate)
	if err != nil {
		return nil, err
	}
	timeOff, err := r.repo.Input.ListApprovedTimeOff(ctx, period.StartDate, period.EndDate)
	if err != nil {
		return nil, err
	}

	in := &generator.Input{
		PeriodID:    periodID,
		StartDate:   model.FormatDate(period.StartDate),
		EndDate:     model.FormatDate(period.EndDate),
		Residents:   make([]generator.Resident, 0, len(residents)),
		Requests:    make([]generator.Request, 0, len(requests)),
		TimeOff:     make([]generator.TimeOff, 0, len(timeOff)),
		Holidays:    confirmed,
		Constraints: constraints,
	}
	for _, res := range residents {
		in.Residents = append(in.Residents, generator.Resident{
			ID:                res.ResidentID,
			Tier:              res.Tier,
			OBMonthsCompleted: res.OBMonthsCompleted,
		})
	}
	for _, req := range requests {
		in.Requests = append(in.Requests, generator.Request{
			ResidentID:  req.ResidentID,
			RequestType: string(req.RequestType),
			StartDate:   model.FormatDate(req.StartDate),
			EndDate:     model.FormatDate(req.EndDate),
		})
	}
	for _, b := range timeOff {
		in.TimeOff = append(in.TimeOff, generator.TimeOff{
			ResidentID: b.ResidentID,
			StartDate:  model.FormatDate(b.StartDate),
			EndDate:    model.FormatDate(b.EndDate),
			BlockType:  string(b.BlockType),
		})
	}

	r.logger.Debug("求解输入已就绪",
		zap.String("period_id", periodID),
		zap.Int("residents", len(in.Residents)),
		zap.Int("requests", len(in.Requests)),
		zap.Int("time_off", len(in.TimeOff)),
		zap.Int("holidays", len(in.Holidays)),
	)
	return in, nil
}

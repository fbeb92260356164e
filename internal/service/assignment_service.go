package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dfberenson/ob-resident-scheduler/internal/conflict"
	"github.com/dfberenson/ob-resident-scheduler/internal/dto"
	"github.com/dfberenson/ob-resident-scheduler/internal/model"
	"github.com/dfberenson/ob-resident-scheduler/internal/repository"
	pkgerrors "github.com/dfberenson/ob-resident-scheduler/pkg/errors"
	"github.com/dfberenson/ob-resident-scheduler/pkg/keymutex"
	"github.com/dfberenson/ob-resident-scheduler/pkg/metrics"
	"github.com/dfberenson/ob-resident-scheduler/pkg/tracing"
)

// AssignmentService 排班项业务接口
type AssignmentService interface {
	ListByVersion(ctx context.Context, versionID string) ([]dto.AssignmentResponse, error)
	// Update 部分更新排班项，同一事务内追加一条变更历史
	// 返回更新后的排班项与变更前后 (住院医师, 日期) 上的当前冲突
	Update(ctx context.Context, id string, req *dto.UpdateAssignmentRequest) (*dto.UpdateAssignmentResponse, error)
	// History 按时间正序返回变更历史
	History(ctx context.Context, id string) ([]dto.HistoryEntryResponse, error)
}

type assignmentService struct {
	repo        *repository.Repository
	logger      *zap.Logger
	metrics     metrics.Recorder
	tracer      trace.Tracer
	updateLocks *keymutex.KeyedMutex
	now         func() time.Time
}

// NewAssignmentService 创建 AssignmentService 实例
func NewAssignmentService(repo *repository.Repository, logger *zap.Logger, m metrics.Recorder) AssignmentService {
	if m == nil {
		m = metrics.Nop{}
	}
	return &assignmentService{
		repo:        repo,
		logger:      logger,
		metrics:     m,
		tracer:      tracing.Tracer("service"),
		updateLocks: keymutex.New(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ────────────────────── ListByVersion ──────────────────────

func (s *assignmentService) ListByVersion(ctx context.Context, versionID string) ([]dto.AssignmentResponse, error) {
	if _, err := loadVersion(ctx, s.repo, versionID); err != nil {
		return nil, err
	}

	items, err := s.repo.Assignment.ListByVersion(ctx, versionID)
	if err != nil {
		s.logger.Error("列出排班项失败", zap.String("version_id", versionID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.AssignmentResponse, 0, len(items))
	for i := range items {
		result = append(result, *toAssignmentResponse(&items[i]))
	}
	return result, nil
}

// ────────────────────── Update ──────────────────────

// assignmentPatch 解析后的更新字段，nil 表示不修改
type assignmentPatch struct {
	residentID *string
	date       *time.Time
	shiftType  *model.ShiftType
}

func (s *assignmentService) parsePatch(ctx context.Context, id string, req *dto.UpdateAssignmentRequest) (*assignmentPatch, error) {
	patch := &assignmentPatch{}

	if req.ShiftType != nil {
		shift := model.ShiftType(*req.ShiftType)
		if !shift.Valid() {
			return nil, pkgerrors.WithDetail(pkgerrors.ErrUnknownShiftType, id, "shift_type")
		}
		patch.shiftType = &shift
	}

	if req.Date != nil {
		date, err := model.ParseDate(*req.Date)
		if err != nil {
			return nil, pkgerrors.WithDetail(pkgerrors.ErrInvalidAssignment, id, "date")
		}
		patch.date = &date
	}

	if req.ResidentID != nil {
		if err := requireID(*req.ResidentID, pkgerrors.ErrInvalidAssignment, "resident_id"); err != nil {
			return nil, err
		}
		existing, err := s.repo.Input.ExistingResidentIDs(ctx, []string{*req.ResidentID})
		if err != nil {
			return nil, err
		}
		if !existing[*req.ResidentID] {
			return nil, pkgerrors.WithDetail(pkgerrors.ErrInvalidAssignment, *req.ResidentID, "resident_id")
		}
		patch.residentID = req.ResidentID
	}
	return patch, nil
}

func (s *assignmentService) Update(ctx context.Context, id string, req *dto.UpdateAssignmentRequest) (*dto.UpdateAssignmentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "assignments.update",
		trace.WithAttributes(attribute.String("assignment.id", id)))
	defer span.End()

	resp, err := s.update(ctx, id, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.metrics.AssignmentUpdate(pkgerrors.KindOf(err))
		return nil, err
	}
	s.metrics.AssignmentUpdate("success")
	return resp, nil
}

func (s *assignmentService) update(ctx context.Context, id string, req *dto.UpdateAssignmentRequest) (*dto.UpdateAssignmentResponse, error) {
	if err := requireID(id, pkgerrors.ErrAssignmentNotFound, "assignment_id"); err != nil {
		return nil, err
	}

	// 校验失败不触及数据库写入
	patch, err := s.parsePatch(ctx, id, req)
	if err != nil {
		return nil, err
	}

	unlock := s.updateLocks.Lock(id)
	defer unlock()

	updated, entry, err := s.repo.Assignment.UpdateWithHistory(ctx, id, s.now(),
		func(a *model.Assignment, version *model.ScheduleVersion, period *model.SchedulePeriod) error {
			if version.Status == model.VersionSuperseded {
				return pkgerrors.WithDetail(pkgerrors.ErrVersionNotEditable, version.VersionID, "status")
			}
			if patch.residentID != nil {
				a.ResidentID = *patch.residentID
			}
			if patch.date != nil {
				a.Date = *patch.date
			}
			if patch.shiftType != nil {
				a.ShiftType = *patch.shiftType
			}
			if !period.Contains(a.Date) {
				return pkgerrors.WithDetail(pkgerrors.ErrDateOutOfRange, id, "date")
			}
			return nil
		})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.WithDetail(pkgerrors.ErrAssignmentNotFound, id, "assignment_id")
		}
		if pkgerrors.KindOf(err) == "Internal" {
			s.logger.Error("更新排班项失败", zap.String("id", id), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("排班项已更新",
		zap.String("assignment_id", id),
		zap.String("history_id", entry.HistoryID),
		zap.String("resident_id", updated.ResidentID),
		zap.String("date", model.FormatDate(updated.Date)),
		zap.String("shift_type", string(updated.ShiftType)),
	)

	resp := &dto.UpdateAssignmentResponse{Assignment: *toAssignmentResponse(updated)}

	// 更新已提交，冲突检测失败时仍返回成功，仅省略 conflicts
	affected, err := s.affectedConflicts(ctx, updated.VersionID, entry)
	if err != nil {
		s.logger.Warn("更新后冲突检测失败，响应中省略冲突",
			zap.String("assignment_id", id),
			zap.String("version_id", updated.VersionID),
			zap.Error(err),
		)
		return resp, nil
	}
	resp.Conflicts = toConflictResponses(affected)
	return resp, nil
}

// affectedConflicts 重新检测变更前后涉及的 (住院医师, 日期)
func (s *assignmentService) affectedConflicts(ctx context.Context, versionID string, entry *model.AssignmentHistory) ([]conflict.Conflict, error) {
	version, err := loadVersion(ctx, s.repo, versionID)
	if err != nil {
		return nil, err
	}
	all, err := detectConflicts(ctx, s.repo, version)
	if err != nil {
		return nil, err
	}
	return conflict.Affecting(all,
		conflict.NewKey(entry.OldResidentID, entry.OldDate),
		conflict.NewKey(entry.NewResidentID, entry.NewDate),
	), nil
}

// ────────────────────── History ──────────────────────

func (s *assignmentService) History(ctx context.Context, id string) ([]dto.HistoryEntryResponse, error) {
	if err := requireID(id, pkgerrors.ErrAssignmentNotFound, "assignment_id"); err != nil {
		return nil, err
	}
	if _, err := s.repo.Assignment.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.WithDetail(pkgerrors.ErrAssignmentNotFound, id, "assignment_id")
		}
		s.logger.Error("查询排班项失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	entries, err := s.repo.History.ListByAssignment(ctx, id)
	if err != nil {
		s.logger.Error("查询变更历史失败", zap.String("assignment_id", id), zap.Error(err))
		return nil, err
	}

	result := make([]dto.HistoryEntryResponse, 0, len(entries))
	for i := range entries {
		result = append(result, toHistoryResponse(&entries[i]))
	}
	return result, nil
}

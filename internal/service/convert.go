package service

import (
	"encoding/json"

	"github.com/dfberenson/ob-resident-scheduler/internal/conflict"
	"github.com/dfberenson/ob-resident-scheduler/internal/dto"
	"github.com/dfberenson/ob-resident-scheduler/internal/model"
)

// ── 模型 → 响应 ──

func toPeriodResponse(p *model.SchedulePeriod) *dto.PeriodResponse {
	return &dto.PeriodResponse{
		ID:        p.PeriodID,
		Name:      p.Name,
		StartDate: model.FormatDate(p.StartDate),
		EndDate:   model.FormatDate(p.EndDate),
		Version:   p.Version,
		CreatedAt: dto.FormatTime(p.CreatedAt),
		UpdatedAt: dto.FormatTime(p.UpdatedAt),
	}
}

func toVersionResponse(v *model.ScheduleVersion) *dto.VersionResponse {
	return &dto.VersionResponse{
		ID:             v.VersionID,
		PeriodID:       v.PeriodID,
		Status:         string(v.Status),
		CreatedAt:      dto.FormatTime(v.CreatedAt),
		PublishedAt:    dto.FormatTimePtr(v.PublishedAt),
		SupersededAt:   dto.FormatTimePtr(v.SupersededAt),
		FairnessReport: rawJSON(v.FairnessReport),
		UnmetRequests:  rawJSON(v.UnmetRequests),
	}
}

func toAssignmentResponse(a *model.Assignment) *dto.AssignmentResponse {
	return &dto.AssignmentResponse{
		ID:         a.AssignmentID,
		VersionID:  a.VersionID,
		ResidentID: a.ResidentID,
		Date:       model.FormatDate(a.Date),
		ShiftType:  string(a.ShiftType),
		Version:    a.Version,
	}
}

func toAlertResponse(a *model.ScheduleAlert) dto.AlertResponse {
	return dto.AlertResponse{
		ID:       a.AlertID,
		Date:     model.FormatDate(a.Date),
		Message:  a.Message,
		Severity: a.Severity,
	}
}

func toHistoryResponse(h *model.AssignmentHistory) dto.HistoryEntryResponse {
	return dto.HistoryEntryResponse{
		ID:            h.HistoryID,
		AssignmentID:  h.AssignmentID,
		ChangedAt:     dto.FormatTime(h.ChangedAt),
		OldResidentID: h.OldResidentID,
		NewResidentID: h.NewResidentID,
		OldDate:       model.FormatDate(h.OldDate),
		NewDate:       model.FormatDate(h.NewDate),
		OldShiftType:  string(h.OldShiftType),
		NewShiftType:  string(h.NewShiftType),
	}
}

func toConflictResponses(conflicts []conflict.Conflict) []dto.ConflictResponse {
	result := make([]dto.ConflictResponse, 0, len(conflicts))
	for _, c := range conflicts {
		reasons := make([]string, 0, len(c.Reasons))
		for _, r := range c.Reasons {
			reasons = append(reasons, string(r))
		}
		result = append(result, dto.ConflictResponse{
			ResidentID:    c.ResidentID,
			Date:          model.FormatDate(c.Date),
			AssignmentIDs: c.AssignmentIDs,
			Reasons:       reasons,
		})
	}
	return result
}

func toJobResponse(j *model.GenerationJob) *dto.JobResponse {
	resp := &dto.JobResponse{
		ID:         j.JobID,
		PeriodID:   j.PeriodID,
		Status:     string(j.Status),
		VersionID:  j.VersionID,
		CreatedAt:  dto.FormatTime(j.CreatedAt),
		StartedAt:  dto.FormatTimePtr(j.StartedAt),
		FinishedAt: dto.FormatTimePtr(j.FinishedAt),
	}
	if j.Error != nil {
		resp.Error = &dto.JobErrorResponse{Kind: j.Error.Kind, Message: j.Error.Message}
	}
	return resp
}

func rawJSON(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	return json.RawMessage(b)
}

package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/dfberenson/ob-resident-scheduler/internal/dto"
	"github.com/dfberenson/ob-resident-scheduler/internal/model"
	pkgerrors "github.com/dfberenson/ob-resident-scheduler/pkg/errors"
)

// assignmentFixture 一个周期、一个草稿版本、两名住院医师
type assignmentFixture struct {
	svc     *Service
	db      *memDB
	version *model.ScheduleVersion
	r, s    string
}

func setupAssignmentFixture(status model.VersionStatus) *assignmentFixture {
	svc, db := setupTestService()
	p := db.addPeriod("2024-01-01", "2024-01-31")
	return &assignmentFixture{
		svc:     svc,
		db:      db,
		version: db.addVersion(p.PeriodID, status),
		r:       db.addResident("Riley", 3),
		s:       db.addResident("Sam", 3),
	}
}

func TestAssignmentService_Update_ShiftType(t *testing.T) {
	f := setupAssignmentFixture(model.VersionDraft)
	a := f.db.addAssignment(f.version.VersionID, f.r, "2024-01-10", model.ShiftOBDay)

	resp, err := f.svc.Assignment.Update(context.Background(), a.AssignmentID, &dto.UpdateAssignmentRequest{ShiftType: strPtr("OB_OC")})
	if err != nil {
		t.Fatalf("更新失败: %v", err)
	}
	if resp.Assignment.ShiftType != "OB_OC" || resp.Assignment.Version != 2 {
		t.Errorf("更新结果不符: %+v", resp.Assignment)
	}
	if resp.Assignment.VersionID != f.version.VersionID {
		t.Errorf("所属版本不应变化，实际: %s", resp.Assignment.VersionID)
	}

	history := f.db.historyOf(a.AssignmentID)
	if len(history) != 1 {
		t.Fatalf("期望 1 条历史，实际: %d", len(history))
	}
	h := history[0]
	if h.OldShiftType != model.ShiftOBDay || h.NewShiftType != model.ShiftOBOC {
		t.Errorf("历史班次快照不符: %s → %s", h.OldShiftType, h.NewShiftType)
	}
	if h.OldResidentID != f.r || h.NewResidentID != f.r {
		t.Errorf("历史住院医师快照不符: %s → %s", h.OldResidentID, h.NewResidentID)
	}
}

func TestAssignmentService_Update_NoOpIsAudited(t *testing.T) {
	f := setupAssignmentFixture(model.VersionDraft)
	a := f.db.addAssignment(f.version.VersionID, f.r, "2024-01-10", model.ShiftOBDay)

	_, err := f.svc.Assignment.Update(context.Background(), a.AssignmentID, &dto.UpdateAssignmentRequest{ShiftType: strPtr("OB_DAY")})
	if err != nil {
		t.Fatalf("更新失败: %v", err)
	}

	history := f.db.historyOf(a.AssignmentID)
	if len(history) != 1 {
		t.Fatalf("期望无变化的更新也记录 1 条历史，实际: %d", len(history))
	}
	if history[0].OldShiftType != history[0].NewShiftType || !history[0].OldDate.Equal(history[0].NewDate) {
		t.Errorf("期望新旧值相同，实际: %+v", history[0])
	}
}

func TestAssignmentService_Update_ResidentAndDate(t *testing.T) {
	f := setupAssignmentFixture(model.VersionPublished)
	a := f.db.addAssignment(f.version.VersionID, f.r, "2024-01-10", model.ShiftOBL3)

	resp, err := f.svc.Assignment.Update(context.Background(), a.AssignmentID, &dto.UpdateAssignmentRequest{
		ResidentID: strPtr(f.s),
		Date:       strPtr("2024-01-11"),
	})
	if err != nil {
		t.Fatalf("已发布版本应可修改，实际: %v", err)
	}
	if resp.Assignment.ResidentID != f.s || resp.Assignment.Date != "2024-01-11" || resp.Assignment.ShiftType != "OB_L3" {
		t.Errorf("更新结果不符: %+v", resp.Assignment)
	}
}

func TestAssignmentService_Update_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		status model.VersionStatus
		req    func(f *assignmentFixture) *dto.UpdateAssignmentRequest
		kind   error
		field  string
	}{
		{
			name:   "日期超出周期",
			status: model.VersionDraft,
			req: func(*assignmentFixture) *dto.UpdateAssignmentRequest {
				return &dto.UpdateAssignmentRequest{Date: strPtr("2024-02-01")}
			},
			kind: pkgerrors.ErrDateOutOfRange, field: "date",
		},
		{
			name:   "未知班次",
			status: model.VersionDraft,
			req: func(*assignmentFixture) *dto.UpdateAssignmentRequest {
				return &dto.UpdateAssignmentRequest{ShiftType: strPtr("OB_NIGHT")}
			},
			kind: pkgerrors.ErrUnknownShiftType, field: "shift_type",
		},
		{
			name:   "日期格式错误",
			status: model.VersionDraft,
			req: func(*assignmentFixture) *dto.UpdateAssignmentRequest {
				return &dto.UpdateAssignmentRequest{Date: strPtr("Jan 5")}
			},
			kind: pkgerrors.ErrInvalidAssignment, field: "date",
		},
		{
			name:   "住院医师不存在",
			status: model.VersionDraft,
			req: func(*assignmentFixture) *dto.UpdateAssignmentRequest {
				return &dto.UpdateAssignmentRequest{ResidentID: strPtr(uuid.NewString())}
			},
			kind: pkgerrors.ErrInvalidAssignment, field: "resident_id",
		},
		{
			name:   "已取代版本不可修改",
			status: model.VersionSuperseded,
			req: func(*assignmentFixture) *dto.UpdateAssignmentRequest {
				return &dto.UpdateAssignmentRequest{ShiftType: strPtr("OB_OC")}
			},
			kind: pkgerrors.ErrVersionNotEditable, field: "status",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := setupAssignmentFixture(tc.status)
			a := f.db.addAssignment(f.version.VersionID, f.r, "2024-01-10", model.ShiftOBDay)

			_, err := f.svc.Assignment.Update(context.Background(), a.AssignmentID, tc.req(f))
			assertDetail(t, err, tc.kind, "", tc.field)

			// 失败的更新不留痕迹
			if n := len(f.db.historyOf(a.AssignmentID)); n != 0 {
				t.Errorf("期望无历史记录，实际: %d", n)
			}
			got := f.db.assignments[a.AssignmentID]
			if got.ShiftType != model.ShiftOBDay || model.FormatDate(got.Date) != "2024-01-10" || got.Version != 1 {
				t.Errorf("期望排班项未被修改，实际: %+v", got)
			}
		})
	}
}

func TestAssignmentService_Update_NotFound(t *testing.T) {
	svc, _ := setupTestService()

	_, err := svc.Assignment.Update(context.Background(), "missing", &dto.UpdateAssignmentRequest{})
	assertDetail(t, err, pkgerrors.ErrAssignmentNotFound, "missing", "assignment_id")
}

func TestAssignmentService_Update_ReportsAffectedConflicts(t *testing.T) {
	f := setupAssignmentFixture(model.VersionDraft)
	f.db.addTimeOff(f.r, "2024-01-12", "2024-01-13")
	f.db.addAssignment(f.version.VersionID, f.s, "2024-01-20", model.ShiftOBDay)
	f.db.addAssignment(f.version.VersionID, f.s, "2024-01-20", model.ShiftOBOC)
	a := f.db.addAssignment(f.version.VersionID, f.r, "2024-01-14", model.ShiftOBDay)

	// 移动到请假日
	resp, err := f.svc.Assignment.Update(context.Background(), a.AssignmentID, &dto.UpdateAssignmentRequest{Date: strPtr("2024-01-12")})
	if err != nil {
		t.Fatalf("更新失败: %v", err)
	}
	if len(resp.Conflicts) != 1 {
		t.Fatalf("期望只返回受影响的 1 条冲突，实际: %+v", resp.Conflicts)
	}
	c := resp.Conflicts[0]
	if c.ResidentID != f.r || c.Date != "2024-01-12" || c.Reasons[0] != "TIME_OFF" {
		t.Errorf("冲突不符: %+v", c)
	}

	// 移回后冲突消失
	resp, err = f.svc.Assignment.Update(context.Background(), a.AssignmentID, &dto.UpdateAssignmentRequest{Date: strPtr("2024-01-14")})
	if err != nil {
		t.Fatalf("更新失败: %v", err)
	}
	if len(resp.Conflicts) != 0 {
		t.Errorf("期望无受影响冲突，实际: %+v", resp.Conflicts)
	}
}

func TestAssignmentService_History_OldestFirst(t *testing.T) {
	f := setupAssignmentFixture(model.VersionDraft)
	a := f.db.addAssignment(f.version.VersionID, f.r, "2024-01-10", model.ShiftOBDay)
	ctx := context.Background()

	for _, shift := range []string{"OB_L3", "OB_L4", "OB_OC"} {
		if _, err := f.svc.Assignment.Update(ctx, a.AssignmentID, &dto.UpdateAssignmentRequest{ShiftType: strPtr(shift)}); err != nil {
			t.Fatalf("更新 %s 失败: %v", shift, err)
		}
	}

	history, err := f.svc.Assignment.History(ctx, a.AssignmentID)
	if err != nil {
		t.Fatalf("查询历史失败: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("期望 3 条历史，实际: %d", len(history))
	}
	want := [][2]string{{"OB_DAY", "OB_L3"}, {"OB_L3", "OB_L4"}, {"OB_L4", "OB_OC"}}
	for i, w := range want {
		if history[i].OldShiftType != w[0] || history[i].NewShiftType != w[1] {
			t.Errorf("第 %d 条历史期望 %s→%s，实际: %s→%s", i, w[0], w[1], history[i].OldShiftType, history[i].NewShiftType)
		}
	}
}

func TestAssignmentService_History_NotFound(t *testing.T) {
	svc, _ := setupTestService()

	_, err := svc.Assignment.History(context.Background(), "missing")
	if !errors.Is(err, pkgerrors.ErrAssignmentNotFound) {
		t.Errorf("期望 ErrAssignmentNotFound，实际: %v", err)
	}
}

func TestAssignmentService_ListByVersion_UnknownVersion(t *testing.T) {
	svc, _ := setupTestService()

	_, err := svc.Assignment.ListByVersion(context.Background(), "missing")
	if !errors.Is(err, pkgerrors.ErrVersionNotFound) {
		t.Errorf("期望 ErrVersionNotFound，实际: %v", err)
	}
}

func TestAssignmentService_Update_DetectionFailureAfterCommit(t *testing.T) {
	f := setupAssignmentFixture(model.VersionDraft)
	a := f.db.addAssignment(f.version.VersionID, f.r, "2024-01-10", model.ShiftOBDay)
	// 约束配置在外部被改坏：提交后的冲突检测会失败
	f.db.constraints[""] = &model.SolverConstraints{ConstraintsID: "global", Config: datatypes.JSON(`{"time_off_exempt": ["XX"]}`)}

	resp, err := f.svc.Assignment.Update(context.Background(), a.AssignmentID, &dto.UpdateAssignmentRequest{ShiftType: strPtr("OB_OC")})
	if err != nil {
		t.Fatalf("已提交的更新不应返回错误，实际: %v", err)
	}
	if resp.Assignment.ShiftType != "OB_OC" {
		t.Errorf("期望返回更新后的排班项，实际: %+v", resp.Assignment)
	}
	if resp.Conflicts != nil {
		t.Errorf("期望省略冲突，实际: %+v", resp.Conflicts)
	}
	if n := len(f.db.historyOf(a.AssignmentID)); n != 1 {
		t.Errorf("期望 1 条历史，实际: %d", n)
	}
}

func TestAssignmentService_MalformedIDs(t *testing.T) {
	f := setupAssignmentFixture(model.VersionDraft)
	a := f.db.addAssignment(f.version.VersionID, f.r, "2024-01-10", model.ShiftOBDay)
	ctx := context.Background()

	_, err := f.svc.Assignment.Update(ctx, "not-a-uuid", &dto.UpdateAssignmentRequest{ShiftType: strPtr("OB_OC")})
	assertDetail(t, err, pkgerrors.ErrAssignmentNotFound, "not-a-uuid", "assignment_id")

	_, err = f.svc.Assignment.History(ctx, "not-a-uuid")
	assertDetail(t, err, pkgerrors.ErrAssignmentNotFound, "not-a-uuid", "assignment_id")

	_, err = f.svc.Assignment.ListByVersion(ctx, "xyz")
	assertDetail(t, err, pkgerrors.ErrVersionNotFound, "xyz", "version_id")

	_, err = f.svc.Assignment.Update(ctx, a.AssignmentID, &dto.UpdateAssignmentRequest{ResidentID: strPtr("r-1")})
	assertDetail(t, err, pkgerrors.ErrInvalidAssignment, "r-1", "resident_id")
	if n := len(f.db.historyOf(a.AssignmentID)); n != 0 {
		t.Errorf("期望无历史记录，实际: %d", n)
	}
}

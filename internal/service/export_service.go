package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/dfberenson/ob-resident-scheduler/internal/conflict"
	"github.com/dfberenson/ob-resident-scheduler/internal/model"
	"github.com/dfberenson/ob-resident-scheduler/internal/repository"
)

// ── 导出格式 ──

const (
	FormatXLSX = "xlsx"
	FormatICS  = "ics"
)

// ErrExportGenerateFail 生成导出文件失败
var ErrExportGenerateFail = errors.New("生成导出文件失败")

// ExportFile 导出结果
type ExportFile struct {
	Content     *bytes.Buffer
	Filename    string
	ContentType string
}

// ExportService 导出业务接口
//
//   - xlsx：日期 × 住院医师网格，附冲突工作表
//   - ics：每个排班项一条全天事件，可按住院医师过滤
type ExportService interface {
	Export(ctx context.Context, versionID, format, residentID string) (*ExportFile, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// exportData 导出所需的版本快照
type exportData struct {
	version     *model.ScheduleVersion
	assignments []model.Assignment
	residents   []model.Resident
	conflicts   []conflict.Conflict
}

func (s *exportService) Export(ctx context.Context, versionID, format, residentID string) (*ExportFile, error) {
	version, err := loadVersion(ctx, s.repo, versionID)
	if err != nil {
		return nil, err
	}
	assignments, err := s.repo.Assignment.ListByVersion(ctx, versionID)
	if err != nil {
		s.logger.Error("查询排班项失败", zap.String("version_id", versionID), zap.Error(err))
		return nil, err
	}
	residents, err := s.repo.Input.ListResidents(ctx)
	if err != nil {
		return nil, err
	}

	data := &exportData{version: version, residents: residents}
	for _, a := range assignments {
		if residentID == "" || a.ResidentID == residentID {
			data.assignments = append(data.assignments, a)
		}
	}

	switch format {
	case FormatICS:
		return s.exportICS(data, residentID)
	default:
		conflicts, err := detectConflicts(ctx, s.repo, version)
		if err != nil {
			return nil, err
		}
		for _, c := range conflicts {
			if residentID == "" || c.ResidentID == residentID {
				data.conflicts = append(data.conflicts, c)
			}
		}
		return s.exportXLSX(data, residentID)
	}
}

// ════════════════════════════════════════════════════════════
// xlsx
// ════════════════════════════════════════════════════════════
//
// Sheet "Schedule"：行为周期内每一天，列为住院医师，单元格为当天班次（多个以 / 分隔）
// Sheet "Conflicts"：住院医师 | 日期 | 排班项 | 原因

func (s *exportService) exportXLSX(data *exportData, residentID string) (*ExportFile, error) {
	period := data.version.Period

	// 只展示有排班项的住院医师，按姓名排序
	names := make(map[string]string, len(data.residents))
	for _, r := range data.residents {
		names[r.ResidentID] = r.Name
	}
	cells := make(map[string]map[string][]string) // resident → date → shifts
	for _, a := range data.assignments {
		byDate, ok := cells[a.ResidentID]
		if !ok {
			byDate = make(map[string][]string)
			cells[a.ResidentID] = byDate
		}
		d := model.FormatDate(a.Date)
		byDate[d] = append(byDate[d], string(a.ShiftType))
	}
	columns := make([]string, 0, len(cells))
	for id := range cells {
		columns = append(columns, id)
	}
	if residentID != "" && len(columns) == 0 {
		columns = append(columns, residentID)
	}
	sort.Slice(columns, func(i, j int) bool {
		ni, nj := displayName(names, columns[i]), displayName(names, columns[j])
		if ni != nj {
			return ni < nj
		}
		return columns[i] < columns[j]
	})

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Schedule"
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return nil, s.generateFail(err)
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	f.SetColWidth(sheet, "A", "A", 12)
	f.SetCellValue(sheet, "A1", "Date")
	for i, id := range columns {
		col := colName(i + 1)
		f.SetColWidth(sheet, col, col, 16)
		f.SetCellValue(sheet, cell(col, 1), displayName(names, id))
	}
	f.SetCellStyle(sheet, "A1", cell(colName(len(columns)), 1), headerStyle)

	for r, d := range period.Days() {
		row := r + 2
		date := model.FormatDate(d)
		f.SetCellValue(sheet, cell("A", row), date)
		for i, id := range columns {
			shifts := cells[id][date]
			if len(shifts) == 0 {
				continue
			}
			sort.Strings(shifts)
			f.SetCellValue(sheet, cell(colName(i+1), row), strings.Join(shifts, "/"))
		}
	}

	const conflictSheet = "Conflicts"
	if _, err := f.NewSheet(conflictSheet); err != nil {
		return nil, s.generateFail(err)
	}
	for i, h := range []string{"Resident", "Date", "Assignments", "Reasons"} {
		f.SetCellValue(conflictSheet, cell(colName(i), 1), h)
	}
	f.SetCellStyle(conflictSheet, "A1", "D1", headerStyle)
	for i, c := range data.conflicts {
		row := i + 2
		reasons := make([]string, 0, len(c.Reasons))
		for _, r := range c.Reasons {
			reasons = append(reasons, string(r))
		}
		f.SetCellValue(conflictSheet, cell("A", row), displayName(names, c.ResidentID))
		f.SetCellValue(conflictSheet, cell("B", row), model.FormatDate(c.Date))
		f.SetCellValue(conflictSheet, cell("C", row), strings.Join(c.AssignmentIDs, ", "))
		f.SetCellValue(conflictSheet, cell("D", row), strings.Join(reasons, ", "))
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, s.generateFail(err)
	}

	return &ExportFile{
		Content:     buf,
		Filename:    exportFilename(data.version, residentID, FormatXLSX),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	}, nil
}

// ════════════════════════════════════════════════════════════
// ics
// ════════════════════════════════════════════════════════════

func (s *exportService) exportICS(data *exportData, residentID string) (*ExportFile, error) {
	names := make(map[string]string, len(data.residents))
	for _, r := range data.residents {
		names[r.ResidentID] = r.Name
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//ob-resident-scheduler//schedule export//EN")
	cal.SetName(exportTitle(data.version))

	stamp := s.now()
	items := append([]model.Assignment(nil), data.assignments...)
	sort.Slice(items, func(i, j int) bool {
		if !items[i].Date.Equal(items[j].Date) {
			return items[i].Date.Before(items[j].Date)
		}
		if items[i].ResidentID != items[j].ResidentID {
			return items[i].ResidentID < items[j].ResidentID
		}
		return items[i].ShiftType < items[j].ShiftType
	})
	for _, a := range items {
		event := cal.AddEvent(a.AssignmentID + "@ob-resident-scheduler")
		event.SetDtStampTime(stamp)
		event.SetAllDayStartAt(a.Date)
		event.SetAllDayEndAt(a.Date.AddDate(0, 0, 1))
		if residentID != "" {
			event.SetSummary(string(a.ShiftType))
		} else {
			event.SetSummary(fmt.Sprintf("%s: %s", displayName(names, a.ResidentID), a.ShiftType))
		}
		event.SetDescription(fmt.Sprintf("version %s (%s)", data.version.VersionID, data.version.Status))
	}

	return &ExportFile{
		Content:     bytes.NewBufferString(cal.Serialize()),
		Filename:    exportFilename(data.version, residentID, FormatICS),
		ContentType: "text/calendar; charset=utf-8",
	}, nil
}

// ── 辅助函数 ──

func (s *exportService) generateFail(err error) error {
	s.logger.Error("生成导出文件失败", zap.Error(err))
	return fmt.Errorf("%w: %v", ErrExportGenerateFail, err)
}

func displayName(names map[string]string, id string) string {
	if n, ok := names[id]; ok && n != "" {
		return n
	}
	return id
}

func exportTitle(v *model.ScheduleVersion) string {
	if v.Period != nil && v.Period.Name != "" {
		return v.Period.Name
	}
	return "OB Schedule"
}

func exportFilename(v *model.ScheduleVersion, residentID, ext string) string {
	base := "schedule"
	if v.Period != nil {
		base += "_" + v.Period.StartDate.Format("2006-01")
	}
	base += "_" + strings.ToLower(string(v.Status))
	if residentID != "" {
		base += "_" + residentID
	}
	return base + "." + ext
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

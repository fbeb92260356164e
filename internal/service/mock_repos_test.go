package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dfberenson/ob-resident-scheduler/internal/model"
	"github.com/dfberenson/ob-resident-scheduler/internal/repository"
	pkgerrors "github.com/dfberenson/ob-resident-scheduler/pkg/errors"
)

// ════════════════════════════════════════════════════════════
// memDB 所有 mock repo 共享的内存数据，单把锁模拟事务
// ════════════════════════════════════════════════════════════

type memDB struct {
	mu sync.Mutex

	periods     map[string]*model.SchedulePeriod
	versions    map[string]*model.ScheduleVersion
	assignments map[string]*model.Assignment
	history     []model.AssignmentHistory
	alerts      []model.ScheduleAlert

	residents   []model.Resident
	timeOff     []model.TimeOffBlock
	holidays    []model.Holiday
	requests    []model.ResidentRequest
	constraints map[string]*model.SolverConstraints // "" 为全局配置

	// createFail 非空时 CreateWithAssignments 直接返回该错误
	createFail error
	clock      time.Time
}

func newMemDB() *memDB {
	return &memDB{
		periods:     make(map[string]*model.SchedulePeriod),
		versions:    make(map[string]*model.ScheduleVersion),
		assignments: make(map[string]*model.Assignment),
		constraints: make(map[string]*model.SolverConstraints),
		clock:       time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
	}
}

// tick 单调递增的创建时间，保证排序稳定
func (db *memDB) tick() time.Time {
	db.clock = db.clock.Add(time.Second)
	return db.clock
}

func (db *memDB) toRepository() *repository.Repository {
	return &repository.Repository{
		Period:     &mockPeriodRepo{db: db},
		Version:    &mockVersionRepo{db: db},
		Assignment: &mockAssignmentRepo{db: db},
		History:    &mockHistoryRepo{db: db},
		Alert:      &mockAlertRepo{db: db},
		Input:      &mockInputRepo{db: db},
	}
}

// ── seed 辅助 ──

func (db *memDB) addPeriod(start, end string) *model.SchedulePeriod {
	s, _ := model.ParseDate(start)
	e, _ := model.ParseDate(end)
	p := &model.SchedulePeriod{PeriodID: uuid.NewString(), Name: start, StartDate: s, EndDate: e}
	p.Version = 1
	db.periods[p.PeriodID] = p
	return p
}

func (db *memDB) addResident(name string, obMonths int) string {
	id := uuid.NewString()
	db.residents = append(db.residents, model.Resident{ResidentID: id, Name: name, OBMonthsCompleted: obMonths})
	return id
}

func (db *memDB) addVersion(periodID string, status model.VersionStatus) *model.ScheduleVersion {
	v := &model.ScheduleVersion{VersionID: uuid.NewString(), PeriodID: periodID, Status: status, CreatedAt: db.tick()}
	db.versions[v.VersionID] = v
	return v
}

func (db *memDB) addAssignment(versionID, residentID, date string, shift model.ShiftType) *model.Assignment {
	d, _ := model.ParseDate(date)
	a := &model.Assignment{AssignmentID: uuid.NewString(), VersionID: versionID, ResidentID: residentID, Date: d, ShiftType: shift}
	a.Version = 1
	db.assignments[a.AssignmentID] = a
	return a
}

func (db *memDB) addTimeOff(residentID, start, end string) {
	s, _ := model.ParseDate(start)
	e, _ := model.ParseDate(end)
	db.timeOff = append(db.timeOff, model.TimeOffBlock{
		TimeOffID: uuid.NewString(), ResidentID: residentID, StartDate: s, EndDate: e, Approved: true,
	})
}

func (db *memDB) addHoliday(date string, hospital *bool) {
	d, _ := model.ParseDate(date)
	db.holidays = append(db.holidays, model.Holiday{HolidayID: uuid.NewString(), Date: d, Name: date, HospitalHoliday: hospital})
}

func (db *memDB) historyOf(assignmentID string) []model.AssignmentHistory {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []model.AssignmentHistory
	for _, h := range db.history {
		if h.AssignmentID == assignmentID {
			out = append(out, h)
		}
	}
	return out
}

func overlaps(start, end, from, to time.Time) bool {
	return !start.After(to) && !end.Before(from)
}

// ── Mock PeriodRepository ──

type mockPeriodRepo struct{ db *memDB }

func (m *mockPeriodRepo) Create(_ context.Context, p *model.SchedulePeriod) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if p.PeriodID == "" {
		p.PeriodID = uuid.NewString()
	}
	p.Version = 1
	p.CreatedAt = m.db.tick()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.db.periods[p.PeriodID] = &cp
	return nil
}

func (m *mockPeriodRepo) GetByID(_ context.Context, id string) (*model.SchedulePeriod, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if p, ok := m.db.periods[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPeriodRepo) List(_ context.Context) ([]model.SchedulePeriod, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	result := make([]model.SchedulePeriod, 0, len(m.db.periods))
	for _, p := range m.db.periods {
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartDate.After(result[j].StartDate) })
	return result, nil
}

func (m *mockPeriodRepo) UpdateName(_ context.Context, p *model.SchedulePeriod) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	cur, ok := m.db.periods[p.PeriodID]
	if !ok || cur.Version != p.Version {
		return pkgerrors.ErrOptimisticLock
	}
	cur.Name = p.Name
	cur.Version++
	p.Version = cur.Version
	return nil
}

// ── Mock VersionRepository ──

type mockVersionRepo struct{ db *memDB }

func (m *mockVersionRepo) CreateWithAssignments(_ context.Context, v *model.ScheduleVersion, items []model.Assignment, alerts []model.ScheduleAlert) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.createFail != nil {
		return m.db.createFail
	}
	v.VersionID = uuid.NewString()
	v.Status = model.VersionDraft
	v.CreatedAt = m.db.tick()
	cp := *v
	m.db.versions[v.VersionID] = &cp
	for i := range items {
		items[i].AssignmentID = uuid.NewString()
		items[i].VersionID = v.VersionID
		items[i].Version = 1
		a := items[i]
		m.db.assignments[a.AssignmentID] = &a
	}
	for i := range alerts {
		alerts[i].AlertID = uuid.NewString()
		alerts[i].VersionID = v.VersionID
		m.db.alerts = append(m.db.alerts, alerts[i])
	}
	return nil
}

func (m *mockVersionRepo) GetByID(_ context.Context, id string) (*model.ScheduleVersion, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	v, ok := m.db.versions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *v
	if p, ok := m.db.periods[v.PeriodID]; ok {
		pc := *p
		cp.Period = &pc
	}
	return &cp, nil
}

func (m *mockVersionRepo) ListByPeriod(_ context.Context, periodID string) ([]model.ScheduleVersion, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var result []model.ScheduleVersion
	for _, v := range m.db.versions {
		if v.PeriodID == periodID {
			result = append(result, *v)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *mockVersionRepo) GetLatestDraft(ctx context.Context, periodID string) (*model.ScheduleVersion, error) {
	versions, _ := m.ListByPeriod(ctx, periodID)
	for i := range versions {
		if versions[i].Status == model.VersionDraft {
			return &versions[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockVersionRepo) Publish(_ context.Context, versionID string, now time.Time) (*repository.PublishResult, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	target, ok := m.db.versions[versionID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	next := *target
	if err := next.TransitionTo(model.VersionPublished, now); err != nil {
		return nil, err
	}

	var superseded []model.ScheduleVersion
	for _, v := range m.db.versions {
		if v.PeriodID == target.PeriodID && v.Status == model.VersionPublished {
			if err := v.TransitionTo(model.VersionSuperseded, now); err != nil {
				return nil, err
			}
			superseded = append(superseded, *v)
		}
	}
	*target = next
	published := *target
	return &repository.PublishResult{Published: &published, Superseded: superseded}, nil
}

// ── Mock AlertRepository ──

type mockAlertRepo struct{ db *memDB }

func (m *mockAlertRepo) ListByVersion(_ context.Context, versionID string) ([]model.ScheduleAlert, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var result []model.ScheduleAlert
	for _, a := range m.db.alerts {
		if a.VersionID == versionID {
			result = append(result, a)
		}
	}
	return result, nil
}

// ── Mock AssignmentRepository ──

type mockAssignmentRepo struct{ db *memDB }

func (m *mockAssignmentRepo) GetByID(_ context.Context, id string) (*model.Assignment, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if a, ok := m.db.assignments[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAssignmentRepo) ListByVersion(_ context.Context, versionID string) ([]model.Assignment, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var result []model.Assignment
	for _, a := range m.db.assignments {
		if a.VersionID == versionID {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		if result[i].ResidentID != result[j].ResidentID {
			return result[i].ResidentID < result[j].ResidentID
		}
		return result[i].ShiftType < result[j].ShiftType
	})
	return result, nil
}

func (m *mockAssignmentRepo) UpdateWithHistory(_ context.Context, id string, now time.Time, mutate repository.AssignmentMutator) (*model.Assignment, *model.AssignmentHistory, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	cur, ok := m.db.assignments[id]
	if !ok {
		return nil, nil, gorm.ErrRecordNotFound
	}
	version := *m.db.versions[cur.VersionID]
	period := *m.db.periods[version.PeriodID]

	before := *cur
	updated := *cur
	if err := mutate(&updated, &version, &period); err != nil {
		return nil, nil, err
	}
	updated.Version = before.Version + 1
	updated.UpdatedAt = now

	entry := model.NewAssignmentHistory(&before, &updated, now)
	entry.HistoryID = uuid.NewString()
	*cur = updated
	m.db.history = append(m.db.history, *entry)
	return &updated, entry, nil
}

// ── Mock HistoryRepository ──

type mockHistoryRepo struct{ db *memDB }

func (m *mockHistoryRepo) ListByAssignment(_ context.Context, assignmentID string) ([]model.AssignmentHistory, error) {
	result := m.db.historyOf(assignmentID)
	sort.SliceStable(result, func(i, j int) bool { return result[i].ChangedAt.Before(result[j].ChangedAt) })
	return result, nil
}

// ── Mock InputRepository ──

type mockInputRepo struct{ db *memDB }

func (m *mockInputRepo) ListResidents(_ context.Context) ([]model.Resident, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	return append([]model.Resident(nil), m.db.residents...), nil
}

func (m *mockInputRepo) ExistingResidentIDs(_ context.Context, ids []string) (map[string]bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	found := make(map[string]bool, len(ids))
	for _, id := range ids {
		for _, r := range m.db.residents {
			if r.ResidentID == id {
				found[id] = true
			}
		}
	}
	return found, nil
}

func (m *mockInputRepo) ListApprovedTimeOff(_ context.Context, start, end time.Time) ([]model.TimeOffBlock, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var result []model.TimeOffBlock
	for _, b := range m.db.timeOff {
		if b.Approved && overlaps(b.StartDate, b.EndDate, start, end) {
			result = append(result, b)
		}
	}
	return result, nil
}

func (m *mockInputRepo) ListHolidays(_ context.Context, start, end time.Time) ([]model.Holiday, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var result []model.Holiday
	for _, h := range m.db.holidays {
		if overlaps(h.Date, h.Date, start, end) {
			result = append(result, h)
		}
	}
	return result, nil
}

func (m *mockInputRepo) ListApprovedRequests(_ context.Context, start, end time.Time) ([]model.ResidentRequest, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var result []model.ResidentRequest
	for _, r := range m.db.requests {
		if r.Approved && overlaps(r.StartDate, r.EndDate, start, end) {
			result = append(result, r)
		}
	}
	return result, nil
}

func (m *mockInputRepo) GetConstraints(_ context.Context, periodID string) (*model.SolverConstraints, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if c, ok := m.db.constraints[periodID]; ok {
		return c, nil
	}
	if c, ok := m.db.constraints[""]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

//go:build integration

package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dfberenson/ob-resident-scheduler/internal/model"
	"github.com/dfberenson/ob-resident-scheduler/internal/repository"
	"github.com/dfberenson/ob-resident-scheduler/pkg/database"
	pkgerrors "github.com/dfberenson/ob-resident-scheduler/pkg/errors"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=postgres password=postgres dbname=ob_scheduler_test sslmode=disable TimeZone=UTC"
	}

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法连接测试数据库: %v\n", err)
		os.Exit(1)
	}

	sqlDB, err := testDB.DB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取 sql.DB 失败: %v\n", err)
		os.Exit(1)
	}
	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		fmt.Fprintf(os.Stderr, "执行迁移失败: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

type fixture struct {
	period   *model.SchedulePeriod
	resident *model.Resident
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	start, end, _ := model.MonthRange(2024, time.January)
	period := &model.SchedulePeriod{Name: "January 2024 " + t.Name(), StartDate: start, EndDate: end}
	if err := testDB.WithContext(ctx).Create(period).Error; err != nil {
		t.Fatalf("创建周期失败: %v", err)
	}
	resident := &model.Resident{Name: "R " + t.Name(), OBMonthsCompleted: 2}
	if err := testDB.WithContext(ctx).Create(resident).Error; err != nil {
		t.Fatalf("创建住院医师失败: %v", err)
	}
	return &fixture{period: period, resident: resident}
}

func (f *fixture) createDraft(t *testing.T, repo *repository.Repository, days ...int) *model.ScheduleVersion {
	t.Helper()
	v := &model.ScheduleVersion{PeriodID: f.period.PeriodID}
	var items []model.Assignment
	for _, d := range days {
		items = append(items, model.Assignment{
			ResidentID: f.resident.ResidentID,
			Date:       time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC),
			ShiftType:  model.ShiftOBDay,
		})
	}
	if err := repo.Version.CreateWithAssignments(context.Background(), v, items, nil); err != nil {
		t.Fatalf("创建草稿失败: %v", err)
	}
	return v
}

// ═══════════════════════════════════════════════════════════
// Test: Publish
// ═══════════════════════════════════════════════════════════

func TestPublish_SupersedesPrevious(t *testing.T) {
	f := setupFixture(t)
	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	v1 := f.createDraft(t, repo, 1)
	v2 := f.createDraft(t, repo, 2)

	if _, err := repo.Version.Publish(ctx, v1.VersionID, time.Now()); err != nil {
		t.Fatalf("发布 V1 失败: %v", err)
	}
	res, err := repo.Version.Publish(ctx, v2.VersionID, time.Now())
	if err != nil {
		t.Fatalf("发布 V2 失败: %v", err)
	}
	if len(res.Superseded) != 1 || res.Superseded[0].VersionID != v1.VersionID {
		t.Errorf("期望 V1 被取代，实际: %+v", res.Superseded)
	}

	got1, _ := repo.Version.GetByID(ctx, v1.VersionID)
	got2, _ := repo.Version.GetByID(ctx, v2.VersionID)
	if got1.Status != model.VersionSuperseded || got2.Status != model.VersionPublished {
		t.Errorf("期望 V1=SUPERSEDED V2=PUBLISHED，实际: %s %s", got1.Status, got2.Status)
	}

	_, err = repo.Version.Publish(ctx, v2.VersionID, time.Now())
	if !errors.Is(err, pkgerrors.ErrAlreadyPublished) {
		t.Errorf("重复发布期望 ErrAlreadyPublished，实际: %v", err)
	}
}

func TestPublish_ConcurrentSingleWinner(t *testing.T) {
	f := setupFixture(t)
	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	v := f.createDraft(t, repo, 3)

	const racers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Version.Publish(ctx, v.VersionID, time.Now())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, pkgerrors.ErrAlreadyPublished), errors.Is(err, pkgerrors.ErrConcurrentPublish):
			default:
				t.Errorf("意外错误: %v", err)
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("期望恰好 1 个发布成功，实际: %d", winners)
	}

	var published int64
	testDB.Model(&model.ScheduleVersion{}).
		Where("period_id = ? AND status = ?", f.period.PeriodID, model.VersionPublished).
		Count(&published)
	if published != 1 {
		t.Errorf("期望周期内 1 个 PUBLISHED 版本，实际: %d", published)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: UpdateWithHistory
// ═══════════════════════════════════════════════════════════

func TestUpdateWithHistory_AppendsOneEntry(t *testing.T) {
	f := setupFixture(t)
	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	v := f.createDraft(t, repo, 4)
	items, _ := repo.Assignment.ListByVersion(ctx, v.VersionID)
	if len(items) != 1 {
		t.Fatalf("期望 1 个排班项，实际: %d", len(items))
	}

	updated, entry, err := repo.Assignment.UpdateWithHistory(ctx, items[0].AssignmentID, time.Now(),
		func(a *model.Assignment, _ *model.ScheduleVersion, _ *model.SchedulePeriod) error {
			a.ShiftType = model.ShiftOBOC
			return nil
		})
	if err != nil {
		t.Fatalf("更新失败: %v", err)
	}
	if entry.OldShiftType != model.ShiftOBDay || entry.NewShiftType != updated.ShiftType {
		t.Errorf("历史快照不符: %+v", entry)
	}

	history, _ := repo.History.ListByAssignment(ctx, items[0].AssignmentID)
	if len(history) != 1 {
		t.Errorf("期望 1 条历史，实际: %d", len(history))
	}
}

func TestUpdateWithHistory_RollbackOnMutatorError(t *testing.T) {
	f := setupFixture(t)
	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	v := f.createDraft(t, repo, 5)
	items, _ := repo.Assignment.ListByVersion(ctx, v.VersionID)

	_, _, err := repo.Assignment.UpdateWithHistory(ctx, items[0].AssignmentID, time.Now(),
		func(a *model.Assignment, _ *model.ScheduleVersion, _ *model.SchedulePeriod) error {
			a.ShiftType = model.ShiftOBL3
			return pkgerrors.ErrDateOutOfRange
		})
	if !errors.Is(err, pkgerrors.ErrDateOutOfRange) {
		t.Fatalf("期望 ErrDateOutOfRange，实际: %v", err)
	}

	got, _ := repo.Assignment.GetByID(ctx, items[0].AssignmentID)
	if got.ShiftType != model.ShiftOBDay {
		t.Errorf("期望排班项未被修改，实际: %s", got.ShiftType)
	}
	history, _ := repo.History.ListByAssignment(ctx, items[0].AssignmentID)
	if len(history) != 0 {
		t.Errorf("期望无历史记录，实际: %d", len(history))
	}
}

func TestAssignmentHistory_AppendOnly(t *testing.T) {
	f := setupFixture(t)
	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	v := f.createDraft(t, repo, 6)
	items, _ := repo.Assignment.ListByVersion(ctx, v.VersionID)
	_, entry, err := repo.Assignment.UpdateWithHistory(ctx, items[0].AssignmentID, time.Now(),
		func(*model.Assignment, *model.ScheduleVersion, *model.SchedulePeriod) error { return nil })
	if err != nil {
		t.Fatalf("更新失败: %v", err)
	}

	err = testDB.Where("history_id = ?", entry.HistoryID).Delete(&model.AssignmentHistory{}).Error
	if err == nil {
		t.Error("期望删除历史记录被数据库拒绝")
	}
}

package service

import (
	"errors"
	"testing"

	"go.uber.org/zap"

	pkgerrors "github.com/dfberenson/ob-resident-scheduler/pkg/errors"
)

// ── 测试辅助 ──

func setupTestService() (*Service, *memDB) {
	db := newMemDB()
	return NewService(db.toRepository(), zap.NewNop(), nil), db
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

// assertDetail 校验错误分类与详情
func assertDetail(t *testing.T, err error, kind error, id, field string) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("期望 %v，实际: %v", kind, err)
	}
	d := pkgerrors.DetailOf(err)
	if id != "" && d.ID != id {
		t.Errorf("期望 id=%s，实际: %s", id, d.ID)
	}
	if field != "" && d.Field != field {
		t.Errorf("期望 field=%s，实际: %s", field, d.Field)
	}
}

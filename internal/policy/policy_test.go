package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfberenson/ob-resident-scheduler/internal/model"
)

func TestDefault(t *testing.T) {
	p, err := Default()
	require.NoError(t, err)

	assert.Empty(t, p.CompatibleShifts)
	assert.False(t, p.Compatible(model.ShiftOBDay, model.ShiftOBPostcall))
	assert.False(t, p.TimeOffExempted(model.ShiftBTV))

	day2 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	day4 := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)
	assert.True(t, p.Tier0Prohibited(day2, model.ShiftOBOC))
	assert.False(t, p.Tier0Prohibited(day2, model.ShiftOBDay))
	assert.False(t, p.Tier0Prohibited(day4, model.ShiftOBOC))
}

func TestFromConstraints_Overlay(t *testing.T) {
	raw := []byte(`{
		"coverage": {"weekday": {"ob_oc": 2}},
		"compatible_shifts": [["OB_DAY", "OB_POSTCALL"]],
		"time_off_exempt": ["BT_V", "BT_O"],
		"tier0_call_prohibition": {"days": [1]}
	}`)

	p, err := FromConstraints(raw)
	require.NoError(t, err)

	assert.True(t, p.Compatible(model.ShiftOBDay, model.ShiftOBPostcall))
	assert.True(t, p.Compatible(model.ShiftOBPostcall, model.ShiftOBDay), "兼容关系应对称")
	assert.False(t, p.Compatible(model.ShiftOBDay, model.ShiftOBDay))
	assert.True(t, p.TimeOffExempted(model.ShiftBTO))

	day1 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	assert.True(t, p.Tier0Prohibited(day1, model.ShiftOBL3), "未覆盖的 shifts 保持默认")
	assert.False(t, p.Tier0Prohibited(day2, model.ShiftOBL3))
}

func TestFromConstraints_Empty(t *testing.T) {
	for _, raw := range [][]byte{nil, []byte("null")} {
		p, err := FromConstraints(raw)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3}, p.Tier0.Days)
	}
}

func TestFromConstraints_Invalid(t *testing.T) {
	cases := map[string]string{
		"非 JSON":   `not-json`,
		"未知班次":     `{"compatible_shifts": [["OB_DAY", "OB_NIGHT"]]}`,
		"班次对长度错误": `{"compatible_shifts": [["OB_DAY"]]}`,
		"豁免未知班次":   `{"time_off_exempt": ["XX"]}`,
		"日期越界":     `{"tier0_call_prohibition": {"days": [0]}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromConstraints([]byte(raw))
			assert.Error(t, err)
		})
	}
}

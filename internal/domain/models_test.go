package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAlertTriggeredBoundaries(t *testing.T) {
	target := decimal.NewFromInt(100)

	cases := []struct {
		name  string
		cond  Condition
		price int64
		want  bool
	}{
		{"gte above", ConditionGTE, 150, true},
		{"gte equal", ConditionGTE, 100, true},
		{"gte below", ConditionGTE, 99, false},
		{"lte below", ConditionLTE, 50, true},
		{"lte equal", ConditionLTE, 100, true},
		{"lte above", ConditionLTE, 101, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := Alert{Target: target, Condition: tc.cond}
			assert.Equal(t, tc.want, a.Triggered(decimal.NewFromInt(tc.price)))
		})
	}
}

func TestAlertTriggeredUnknownCondition(t *testing.T) {
	a := Alert{Target: decimal.NewFromInt(1), Condition: Condition("between")}
	assert.False(t, a.Triggered(decimal.NewFromInt(10)))
}

func TestFrequencyValid(t *testing.T) {
	assert.True(t, FrequencyDaily.Valid())
	assert.True(t, FrequencyWeekly.Valid())
	assert.True(t, FrequencyMonthly.Valid())
	assert.False(t, Frequency("hourly").Valid())
	assert.False(t, Frequency("").Valid())
}

func TestConditionValid(t *testing.T) {
	assert.True(t, ConditionGTE.Valid())
	assert.True(t, ConditionLTE.Valid())
	assert.False(t, Condition("eq").Valid())
}

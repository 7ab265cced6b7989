package grading

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestClassify_Precedence(t *testing.T) {
	rules := DefaultRules()

	testCases := []struct {
		name       string
		attendance string
		grades     map[Slot]float64
		expected   Status
	}{
		{
			name:       "approved",
			attendance: "90",
			grades:     baseItems(8, 6, 7, 8, 9),
			expected:   StatusApproved,
		},
		{
			name:       "low attendance beats a passing grade",
			attendance: "60",
			grades:     baseItems(9, 9, 9, 9, 9),
			expected:   StatusFailedAttendance,
		},
		{
			name:       "low attendance beats an incomplete base",
			attendance: "74.99",
			grades:     map[Slot]float64{SlotExamOne: 8},
			expected:   StatusFailedAttendance,
		},
		{
			name:       "attendance exactly at the minimum is fine",
			attendance: "75",
			grades:     baseItems(8, 8, 8, 8, 8),
			expected:   StatusApproved,
		},
		{
			name:       "incomplete base",
			attendance: "90",
			grades:     map[Slot]float64{SlotExamOne: 8, SlotExamTwo: 7},
			expected:   StatusIncomplete,
		},
		{
			name:       "below passing without make-up grade",
			attendance: "80",
			grades:     baseItems(4, 4, 5, 5, 5),
			expected:   StatusPendingMakeUp,
		},
		{
			name:       "approved after make-up",
			attendance: "80",
			grades: func() map[Slot]float64 {
				g := baseItems(4, 4, 5, 5, 5)
				g[SlotMakeUp] = 8
				return g
			}(),
			expected: StatusApprovedAfterMakeUp,
		},
		{
			name:       "failed even after make-up",
			attendance: "80",
			grades: func() map[Slot]float64 {
				g := baseItems(2, 2, 2, 2, 2)
				g[SlotMakeUp] = 3
				return g
			}(),
			expected: StatusFailedGrade,
		},
		{
			name:       "grade exactly at passing approves",
			attendance: "80",
			grades:     baseItems(6, 6, 6, 6, 6),
			expected:   StatusApproved,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			agg := rules.Aggregate(items(tc.grades))
			att := decimal.RequireFromString(tc.attendance)
			assert.Equal(t, tc.expected, rules.Classify(att, agg))
		})
	}
}

func TestStatusLabels(t *testing.T) {
	assert.Equal(t, "Failed: attendance", StatusFailedAttendance.Label())
	assert.Equal(t, "Incomplete", StatusIncomplete.Label())
	assert.Equal(t, "Approved", StatusApproved.Label())
	assert.Equal(t, "Pending make-up exam", StatusPendingMakeUp.Label())
	assert.Equal(t, "Approved after make-up", StatusApprovedAfterMakeUp.Label())
	assert.Equal(t, "Failed: grade", StatusFailedGrade.Label())
}

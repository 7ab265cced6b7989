package grading

import (
	"github.com/shopspring/decimal"
)

// Status is the academic situation of one (student, offering) pair.
type Status string

const (
	StatusFailedAttendance    Status = "failed_attendance"
	StatusIncomplete          Status = "incomplete"
	StatusApproved            Status = "approved"
	StatusPendingMakeUp       Status = "pending_makeup"
	StatusApprovedAfterMakeUp Status = "approved_makeup"
	StatusFailedGrade         Status = "failed_grade"
)

var statusLabels = map[Status]string{
	StatusFailedAttendance:    "Failed: attendance",
	StatusIncomplete:          "Incomplete",
	StatusApproved:            "Approved",
	StatusPendingMakeUp:       "Pending make-up exam",
	StatusApprovedAfterMakeUp: "Approved after make-up",
	StatusFailedGrade:         "Failed: grade",
}

func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// Classify derives the status from attendance and the aggregate. The rule
// order is a hard contract shared by the closing endpoint, the sync-on-
// grading path and the report: attendance gate first, then base
// completeness, then grade thresholds, then make-up availability.
func (r Rules) Classify(attendance decimal.Decimal, agg *Aggregate) Status {
	switch {
	case attendance.LessThan(decimal.NewFromFloat(r.MinAttendance)):
		return StatusFailedAttendance
	case !agg.BaseComplete():
		return StatusIncomplete
	case agg.FinalGrade.GreaterThanOrEqual(decimal.NewFromFloat(r.PassingGrade)):
		return StatusApproved
	case agg.MakeUp == nil:
		return StatusPendingMakeUp
	case agg.PostRecovery != nil && agg.PostRecovery.GreaterThanOrEqual(decimal.NewFromFloat(r.PassingGrade)):
		return StatusApprovedAfterMakeUp
	default:
		return StatusFailedGrade
	}
}

package grading

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrNotEnrolled      = errors.New("student is not enrolled in the class backing this offering")
	ErrRecordMissing    = errors.New("grade record must be created via close first")
	ErrPermissionDenied = errors.New("actor is not allowed to see this record")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// BaseIncompleteError reports which of the five mandatory items are still
// ungraded, using the P1/P2/T1/T2/T3 labels teachers see.
type BaseIncompleteError struct {
	Missing []string
}

func (e *BaseIncompleteError) Error() string {
	return fmt.Sprintf("cannot compute final grade, ungraded activities: %s", strings.Join(e.Missing, ", "))
}

// MakeUpRequiredError blocks closing while a below-passing student has no
// graded make-up exam yet.
type MakeUpRequiredError struct {
	FinalGrade decimal.Decimal
}

func (e *MakeUpRequiredError) Error() string {
	return fmt.Sprintf("final grade %s is below passing, grade the make-up exam (P3) before closing", e.FinalGrade.StringFixed(2))
}

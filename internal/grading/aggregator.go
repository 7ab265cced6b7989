package grading

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/escolab/boletim/internal/models"
)

// Slot identifies one of the six gradable positions of an offering:
// P1/P2 (term exams), P3 (make-up exam), T1/T2/T3 (assignments).
type Slot struct {
	Kind     models.ActivityKind
	Sequence int
}

var (
	SlotExamOne  = Slot{models.KindExam, 1}
	SlotExamTwo  = Slot{models.KindExam, 2}
	SlotMakeUp   = Slot{models.KindExam, 3}
	SlotAsgOne   = Slot{models.KindAssignment, 1}
	SlotAsgTwo   = Slot{models.KindAssignment, 2}
	SlotAsgThree = Slot{models.KindAssignment, 3}

	// baseSlots are the five mandatory graded items. The make-up exam is
	// deliberately not part of the base.
	baseSlots = []Slot{SlotExamOne, SlotExamTwo, SlotAsgOne, SlotAsgTwo, SlotAsgThree}

	maxGrade = decimal.NewFromInt(10)
)

func (s Slot) Label() string {
	prefix := "T"
	if s.Kind == models.KindExam {
		prefix = "P"
	}
	return fmt.Sprintf("%s%d", prefix, s.Sequence)
}

// Rules carries the closing thresholds and weights. Defaults match the
// school regulation: bimonthly exams weigh 70%, assignments 30%, passing
// grade 6.0, minimum attendance 75%.
type Rules struct {
	PassingGrade     float64 `toml:"passing_grade"`
	MinAttendance    float64 `toml:"min_attendance"`
	ExamWeight       float64 `toml:"exam_weight"`
	AssignmentWeight float64 `toml:"assignment_weight"`
}

func DefaultRules() Rules {
	return Rules{
		PassingGrade:     6,
		MinAttendance:    75,
		ExamWeight:       0.7,
		AssignmentWeight: 0.3,
	}
}

// Aggregate is the outcome of folding one student's graded submissions for
// one offering. FinalGrade, ExamAvg and AsgAvg only hold values when
// BaseComplete() is true.
type Aggregate struct {
	Slots        map[Slot]decimal.Decimal
	Missing      []string
	ExamAvg      decimal.Decimal
	AsgAvg       decimal.Decimal
	FinalGrade   decimal.Decimal
	MakeUp       *decimal.Decimal
	PostRecovery *decimal.Decimal
}

func (a *Aggregate) BaseComplete() bool {
	return len(a.Missing) == 0
}

// MakeUpRequired reports whether the student sits below the passing grade
// and therefore needs a make-up exam grade before the record can be closed.
func (a *Aggregate) MakeUpRequired(rules Rules) bool {
	if !a.BaseComplete() {
		return false
	}
	return a.FinalGrade.LessThan(decimal.NewFromFloat(rules.PassingGrade))
}

// PersistedGrade is the value written to the grade record when closing on
// the regular path: the post-recovery grade when the make-up applied,
// otherwise the final grade. Clamped to [0, 10].
func (a *Aggregate) PersistedGrade() decimal.Decimal {
	grade := a.FinalGrade
	if a.PostRecovery != nil {
		grade = *a.PostRecovery
	}
	return clampGrade(grade)
}

// Grade returns the graded value for a slot, if any.
func (a *Aggregate) Grade(slot Slot) (decimal.Decimal, bool) {
	d, ok := a.Slots[slot]
	return d, ok
}

// Aggregate folds graded items into base averages, the weighted final grade
// and, when the student is below passing and the make-up exam is graded,
// the post-recovery grade. Duplicate (kind, sequence) rows keep the first
// occurrence; the store orders rows by activity id so the representative
// is stable.
func (r Rules) Aggregate(items []models.GradedItem) *Aggregate {
	agg := &Aggregate{
		Slots: make(map[Slot]decimal.Decimal, len(items)),
	}

	for _, item := range items {
		slot := Slot{Kind: item.Kind, Sequence: item.Sequence}
		if _, seen := agg.Slots[slot]; seen {
			continue
		}
		agg.Slots[slot] = decimal.NewFromFloat(item.Grade)
	}

	for _, slot := range baseSlots {
		if _, ok := agg.Slots[slot]; !ok {
			agg.Missing = append(agg.Missing, slot.Label())
		}
	}
	if mk, ok := agg.Slots[SlotMakeUp]; ok {
		agg.MakeUp = &mk
	}
	if !agg.BaseComplete() {
		return agg
	}

	two := decimal.NewFromInt(2)
	three := decimal.NewFromInt(3)

	agg.ExamAvg = agg.Slots[SlotExamOne].Add(agg.Slots[SlotExamTwo]).Div(two)
	agg.AsgAvg = agg.Slots[SlotAsgOne].
		Add(agg.Slots[SlotAsgTwo]).
		Add(agg.Slots[SlotAsgThree]).
		Div(three)

	weighted := agg.ExamAvg.Mul(decimal.NewFromFloat(r.ExamWeight)).
		Add(agg.AsgAvg.Mul(decimal.NewFromFloat(r.AssignmentWeight)))
	agg.FinalGrade = round2(weighted)

	if agg.MakeUpRequired(r) && agg.MakeUp != nil {
		recovered := agg.FinalGrade.Add(*agg.MakeUp).Div(two)
		if recovered.LessThan(agg.FinalGrade) {
			recovered = agg.FinalGrade
		}
		post := round2(recovered)
		agg.PostRecovery = &post
	}

	return agg
}

// round2 rounds to two decimal places, half away from zero. Grade math runs
// on decimals so ties like 7.005 round to 7.01 instead of drifting on
// binary-float representation.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func clampGrade(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(maxGrade) {
		return maxGrade
	}
	return d
}

package report

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/escolab/boletim/internal/grading"
	"github.com/escolab/boletim/internal/models"
	"github.com/escolab/boletim/internal/store"
)

// Row is one subject line of the report card: the six activity slots
// ("-" when ungraded), the displayed average and the situation label.
type Row struct {
	OfferingID  int64          `json:"offering_id"`
	Subject     string         `json:"subject"`
	ExamOne     string         `json:"p1"`
	ExamTwo     string         `json:"p2"`
	MakeUp      string         `json:"p3"`
	AsgOne      string         `json:"t1"`
	AsgTwo      string         `json:"t2"`
	AsgThree    string         `json:"t3"`
	Average     string         `json:"average"`
	Attendance  float64        `json:"attendance"`
	Status      grading.Status `json:"status"`
	StatusLabel string         `json:"status_label"`
}

// Renderer turns assembled rows into a downloadable document. Rendering is
// pure formatting; no grading rule lives behind this interface.
type Renderer interface {
	Render(studentName, studentID, className string, rows []Row) ([]byte, error)
}

type Assembler struct {
	store store.BoletimStore
	rules grading.Rules
}

func NewAssembler(st store.BoletimStore, rules grading.Rules) *Assembler {
	return &Assembler{
		store: st,
		rules: rules,
	}
}

// StudentReport builds the per-subject rows for one student. Grades and
// status are always recomputed from the graded submissions; the persisted
// final grade is only the fallback display value when the base went
// incomplete after closing (an activity grade was cleared and never
// re-closed). Rows come back sorted by subject.
func (a *Assembler) StudentReport(studentID string) ([]Row, error) {
	records, err := a.store.ListStudentRecords(studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list student records: %w", err)
	}

	rows := make([]Row, 0, len(records))
	for _, record := range records {
		items, err := a.store.GetGradedItems(studentID, record.OfferingID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch graded items for offering %d: %w", record.OfferingID, err)
		}

		agg := a.rules.Aggregate(items)
		att := decimal.NewFromFloat(record.Attendance)
		status := a.rules.Classify(att, agg)

		rows = append(rows, Row{
			OfferingID:  record.OfferingID,
			Subject:     record.Subject,
			ExamOne:     slotDisplay(agg, grading.SlotExamOne),
			ExamTwo:     slotDisplay(agg, grading.SlotExamTwo),
			MakeUp:      slotDisplay(agg, grading.SlotMakeUp),
			AsgOne:      slotDisplay(agg, grading.SlotAsgOne),
			AsgTwo:      slotDisplay(agg, grading.SlotAsgTwo),
			AsgThree:    slotDisplay(agg, grading.SlotAsgThree),
			Average:     displayAverage(agg, record),
			Attendance:  record.Attendance,
			Status:      status,
			StatusLabel: status.Label(),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Subject != rows[j].Subject {
			return rows[i].Subject < rows[j].Subject
		}
		return rows[i].OfferingID < rows[j].OfferingID
	})

	return rows, nil
}

// StudentReportFor applies the record-read visibility rules before
// assembling: students see only their own report, teachers only the rows
// of offerings assigned to them.
func (a *Assembler) StudentReportFor(actor grading.Actor, studentID string) ([]Row, error) {
	if actor.Role == grading.RoleStudent && actor.ID != studentID {
		return nil, grading.ErrPermissionDenied
	}

	rows, err := a.StudentReport(studentID)
	if err != nil {
		return nil, err
	}
	if actor.Role != grading.RoleTeacher {
		return rows, nil
	}

	offerings, err := a.store.ListTeacherOfferings(actor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teacher offerings: %w", err)
	}
	assigned := make(map[int64]bool, len(offerings))
	for _, offering := range offerings {
		assigned[offering.ID] = true
	}

	filtered := make([]Row, 0, len(rows))
	for _, row := range rows {
		if assigned[row.OfferingID] {
			filtered = append(filtered, row)
		}
	}
	return filtered, nil
}

func slotDisplay(agg *grading.Aggregate, slot grading.Slot) string {
	grade, ok := agg.Grade(slot)
	if !ok {
		return "-"
	}
	return grade.StringFixed(2)
}

// displayAverage precedence: post-recovery grade, then the live final
// grade, then the persisted grade as last resort.
func displayAverage(agg *grading.Aggregate, record models.StudentRecord) string {
	if agg.PostRecovery != nil {
		return agg.PostRecovery.StringFixed(2)
	}
	if agg.BaseComplete() {
		return agg.FinalGrade.StringFixed(2)
	}
	return decimal.NewFromFloat(record.FinalGrade).StringFixed(2)
}

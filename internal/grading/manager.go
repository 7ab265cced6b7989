package grading

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/escolab/boletim/internal/metrics"
	"github.com/escolab/boletim/internal/models"
	"github.com/escolab/boletim/internal/store"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Actor is the authenticated caller, passed explicitly into every
// read operation that filters by visibility.
type Actor struct {
	ID   string
	Role Role
}

// Manager owns the read-modify-write of grade records. It is the only
// writer of the grade_records table.
type Manager struct {
	store store.BoletimStore
	rules Rules
}

func NewManager(st store.BoletimStore, rules Rules) *Manager {
	return &Manager{
		store: st,
		rules: rules,
	}
}

func (m *Manager) Rules() Rules {
	return m.rules
}

type CloseResult struct {
	Record models.GradeRecord
	Status Status
}

// Close finalizes the boletim row for one (student, offering) pair.
//
// Rules, in order: the student must be enrolled in the class backing the
// offering; the five base activities must all be graded; a student below
// the attendance minimum is closed with the base final grade no matter what
// the make-up says; otherwise an approved student is closed with the final
// grade, a below-passing student without a graded make-up exam blocks the
// closing, and one with a make-up is closed with the post-recovery grade.
func (m *Manager) Close(studentID string, offeringID int64, attendance float64) (*CloseResult, error) {
	if studentID == "" {
		return nil, ValidationError{Field: "student", Message: "student id is required"}
	}
	if offeringID <= 0 {
		return nil, ValidationError{Field: "offering", Message: "offering id is required"}
	}
	if attendance < 0 || attendance > 100 {
		return nil, ValidationError{Field: "attendance", Message: "attendance must be between 0 and 100"}
	}

	offering, err := m.store.GetOffering(offeringID)
	if err != nil {
		return nil, fmt.Errorf("failed to load offering: %w", err)
	}
	if offering == nil {
		return nil, ValidationError{Field: "offering", Message: fmt.Sprintf("offering %d not found", offeringID)}
	}

	enrolled, err := m.store.IsEnrolled(studentID, offering.ClassID)
	if err != nil {
		return nil, fmt.Errorf("failed to check enrollment: %w", err)
	}
	if !enrolled {
		return nil, ErrNotEnrolled
	}

	items, err := m.store.GetGradedItems(studentID, offeringID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch graded items: %w", err)
	}

	agg := m.rules.Aggregate(items)
	if !agg.BaseComplete() {
		return nil, &BaseIncompleteError{Missing: agg.Missing}
	}

	att := decimal.NewFromFloat(attendance)
	status := m.rules.Classify(att, agg)

	var grade decimal.Decimal
	switch {
	case status == StatusFailedAttendance:
		// Attendance failure is terminal: the base average is recorded
		// even when a make-up grade exists or is still pending.
		grade = clampGrade(agg.FinalGrade)
	case status == StatusPendingMakeUp:
		return nil, &MakeUpRequiredError{FinalGrade: agg.FinalGrade}
	default:
		grade = agg.PersistedGrade()
	}

	record := models.GradeRecord{
		StudentID:  studentID,
		OfferingID: offeringID,
		FinalGrade: grade.InexactFloat64(),
		Attendance: attendance,
	}
	if err := record.Validate(); err != nil {
		return nil, fmt.Errorf("refusing to persist invalid record: %w", err)
	}

	if err := m.store.UpsertGradeRecord(record); err != nil {
		return nil, fmt.Errorf("failed to upsert grade record: %w", err)
	}

	offeringLabel := strconv.FormatInt(offeringID, 10)
	metrics.ClosingsTotal.WithLabelValues(offeringLabel, string(status)).Inc()
	metrics.FinalGradeHistogram.WithLabelValues(offeringLabel).Observe(record.FinalGrade)

	logger.Info.Printf(
		"Closed boletim for student=%s offering=%d grade=%s status=%s",
		studentID, offeringID, grade.StringFixed(2), status,
	)

	return &CloseResult{Record: record, Status: status}, nil
}

type SyncResult struct {
	Synced bool                `json:"synced"`
	Reason string              `json:"reason,omitempty"`
	Record *models.GradeRecord `json:"record,omitempty"`
}

// SyncFromGrading recomputes the final grade after one submission was
// graded. It only ever updates a row that Close already created, and it
// never touches attendance. Missing record and incomplete base are quiet
// no-ops, not errors: grading the first few activities is normal.
func (m *Manager) SyncFromGrading(studentID string, offeringID int64) (*SyncResult, error) {
	existing, err := m.store.GetGradeRecord(studentID, offeringID)
	if err != nil {
		return nil, fmt.Errorf("failed to get grade record: %w", err)
	}

	offeringLabel := strconv.FormatInt(offeringID, 10)

	if existing == nil {
		metrics.SyncsTotal.WithLabelValues(offeringLabel, "false").Inc()
		return &SyncResult{Synced: false, Reason: ErrRecordMissing.Error()}, nil
	}

	items, err := m.store.GetGradedItems(studentID, offeringID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch graded items: %w", err)
	}

	agg := m.rules.Aggregate(items)
	if !agg.BaseComplete() {
		metrics.SyncsTotal.WithLabelValues(offeringLabel, "false").Inc()
		return &SyncResult{Synced: false, Reason: "base incomplete, nothing to sync"}, nil
	}

	record := models.GradeRecord{
		StudentID:  studentID,
		OfferingID: offeringID,
		FinalGrade: agg.PersistedGrade().InexactFloat64(),
		Attendance: existing.Attendance,
	}
	if err := m.store.UpsertGradeRecord(record); err != nil {
		return nil, fmt.Errorf("failed to upsert grade record: %w", err)
	}

	metrics.SyncsTotal.WithLabelValues(offeringLabel, "true").Inc()
	logger.Debug.Printf(
		"Synced boletim for student=%s offering=%d grade=%.2f",
		studentID, offeringID, record.FinalGrade,
	)

	return &SyncResult{Synced: true, Record: &record}, nil
}

// Get returns one persisted record. Students see only their own rows;
// teachers only rows of offerings assigned to them.
func (m *Manager) Get(actor Actor, studentID string, offeringID int64) (*models.GradeRecord, error) {
	if err := m.checkVisibility(actor, studentID, offeringID); err != nil {
		return nil, err
	}
	return m.store.GetGradeRecord(studentID, offeringID)
}

// ListOffering returns the persisted summary rows of one offering.
func (m *Manager) ListOffering(actor Actor, offeringID int64) ([]models.GradeRecord, error) {
	if actor.Role == RoleStudent {
		return nil, ErrPermissionDenied
	}
	if actor.Role == RoleTeacher {
		if err := m.checkTeacherAssignment(actor, offeringID); err != nil {
			return nil, err
		}
	}
	return m.store.ListOfferingRecords(offeringID)
}

// ListStudent returns the persisted rows of one student across offerings.
// Teachers get only the rows of offerings assigned to them.
func (m *Manager) ListStudent(actor Actor, studentID string) ([]models.StudentRecord, error) {
	if actor.Role == RoleStudent && actor.ID != studentID {
		return nil, ErrPermissionDenied
	}

	records, err := m.store.ListStudentRecords(studentID)
	if err != nil {
		return nil, err
	}
	if actor.Role != RoleTeacher {
		return records, nil
	}

	assigned, err := m.AssignedOfferings(actor.ID)
	if err != nil {
		return nil, err
	}
	filtered := make([]models.StudentRecord, 0, len(records))
	for _, record := range records {
		if assigned[record.OfferingID] {
			filtered = append(filtered, record)
		}
	}
	return filtered, nil
}

// AssignedOfferings returns the set of offering ids one teacher is
// assigned to.
func (m *Manager) AssignedOfferings(teacherID string) (map[int64]bool, error) {
	offerings, err := m.store.ListTeacherOfferings(teacherID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teacher offerings: %w", err)
	}
	assigned := make(map[int64]bool, len(offerings))
	for _, offering := range offerings {
		assigned[offering.ID] = true
	}
	return assigned, nil
}

// AuthorizeOffering gates write actions against one offering: admins pass,
// teachers must be assigned to it, students are rejected.
func (m *Manager) AuthorizeOffering(actor Actor, offeringID int64) error {
	switch actor.Role {
	case RoleAdmin:
		return nil
	case RoleTeacher:
		return m.checkTeacherAssignment(actor, offeringID)
	default:
		return ErrPermissionDenied
	}
}

func (m *Manager) checkVisibility(actor Actor, studentID string, offeringID int64) error {
	switch actor.Role {
	case RoleAdmin:
		return nil
	case RoleStudent:
		if actor.ID != studentID {
			return ErrPermissionDenied
		}
		return nil
	case RoleTeacher:
		return m.checkTeacherAssignment(actor, offeringID)
	default:
		return ErrPermissionDenied
	}
}

func (m *Manager) checkTeacherAssignment(actor Actor, offeringID int64) error {
	offering, err := m.store.GetOffering(offeringID)
	if err != nil {
		return fmt.Errorf("failed to load offering: %w", err)
	}
	if offering == nil || offering.TeacherID != actor.ID {
		return ErrPermissionDenied
	}
	return nil
}

package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/escolab/boletim/internal/models"
)

// ErrDuplicateRecord means more than one boletim row exists for one
// (student, offering) key. The primary key makes this impossible unless
// data upstream is corrupted, so callers treat it as fatal.
var ErrDuplicateRecord = errors.New("multiple grade records found for one student and offering")

type BoletimStore interface {
	Close() error
	ApplyMigrations(dir string) error

	GetOffering(offeringID int64) (*models.Offering, error)
	ListTeacherOfferings(teacherID string) ([]models.Offering, error)
	IsEnrolled(studentID string, classID int64) (bool, error)

	CreateActivity(activity *models.Activity) error
	FindActivity(offeringID int64, kind models.ActivityKind, sequence int) (*models.Activity, error)
	UpsertSubmission(submission *models.Submission) error
	GradeSubmission(submissionID int64, grade float64, feedback string) (*models.Submission, error)
	GetGradedItems(studentID string, offeringID int64) ([]models.GradedItem, error)

	GetGradeRecord(studentID string, offeringID int64) (*models.GradeRecord, error)
	UpsertGradeRecord(record models.GradeRecord) error
	ListOfferingRecords(offeringID int64) ([]models.GradeRecord, error)
	ListStudentRecords(studentID string) ([]models.StudentRecord, error)
}

// BaseStore provides common functionality for different DB implementations
type BaseStore struct {
	DB        *sqlx.DB
	Converter func(string) string
}

func (s *BaseStore) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// ApplyMigrations applies SQL migrations from a directory, translating dialect if needed
func (s *BaseStore) ApplyMigrations(dir string, translateSQL func(string) string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	for _, file := range files {
		if !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}

		content, err := os.ReadFile(fmt.Sprintf("%s/%s", dir, file.Name()))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file.Name(), err)
		}

		sql := string(content)
		if translateSQL != nil {
			sql = translateSQL(sql)
		}

		if _, err := s.DB.Exec(sql); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file.Name(), err)
		}
	}

	return nil
}

func (s *BaseStore) GetOffering(offeringID int64) (*models.Offering, error) {
	var offering models.Offering
	query := s.Converter(`
		SELECT id, class_id, subject, teacher_id
		FROM offerings
		WHERE id = ?
	`)

	err := s.DB.Get(&offering, query, offeringID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get offering: %w", err)
	}
	return &offering, nil
}

func (s *BaseStore) ListTeacherOfferings(teacherID string) ([]models.Offering, error) {
	var offerings []models.Offering
	query := s.Converter(`
		SELECT id, class_id, subject, teacher_id
		FROM offerings
		WHERE teacher_id = ?
		ORDER BY subject, id
	`)

	err := s.DB.Select(&offerings, query, teacherID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teacher offerings: %w", err)
	}
	return offerings, nil
}

func (s *BaseStore) IsEnrolled(studentID string, classID int64) (bool, error) {
	var count int
	query := s.Converter(`
		SELECT COUNT(*)
		FROM enrollments
		WHERE student_id = ? AND class_id = ?
	`)

	if err := s.DB.Get(&count, query, studentID, classID); err != nil {
		return false, fmt.Errorf("failed to check enrollment: %w", err)
	}
	return count > 0, nil
}

func (s *BaseStore) CreateActivity(activity *models.Activity) error {
	_, err := s.DB.NamedExec(`
		INSERT INTO activities (offering_id, kind, sequence, title, due_date, weight, max_score, active)
		VALUES (:offering_id, :kind, :sequence, :title, :due_date, :weight, :max_score, :active)
	`, activity)
	if err != nil {
		return fmt.Errorf("failed to create activity: %w", err)
	}
	return nil
}

func (s *BaseStore) FindActivity(offeringID int64, kind models.ActivityKind, sequence int) (*models.Activity, error) {
	var activity models.Activity
	query := s.Converter(`
		SELECT id, offering_id, kind, sequence, title, due_date, weight, max_score, active
		FROM activities
		WHERE offering_id = ? AND kind = ? AND sequence = ? AND active = TRUE
		ORDER BY id
		LIMIT 1
	`)

	err := s.DB.Get(&activity, query, offeringID, kind, sequence)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find activity: %w", err)
	}
	return &activity, nil
}

// UpsertSubmission inserts the student's delivery or, on resubmission,
// replaces the file and clears any prior grade and feedback.
func (s *BaseStore) UpsertSubmission(submission *models.Submission) error {
	if submission.SubmittedAt == 0 {
		submission.SubmittedAt = time.Now().Unix()
	}
	_, err := s.DB.NamedExec(`
		INSERT INTO submissions (activity_id, student_id, file_ref, grade, feedback, submitted_at, graded_at)
		VALUES (:activity_id, :student_id, :file_ref, NULL, '', :submitted_at, NULL)
		ON CONFLICT(activity_id, student_id) DO UPDATE SET
		file_ref = :file_ref,
		grade = NULL,
		feedback = '',
		submitted_at = :submitted_at,
		graded_at = NULL
	`, submission)
	if err != nil {
		return fmt.Errorf("failed to upsert submission: %w", err)
	}
	return nil
}

func (s *BaseStore) GradeSubmission(submissionID int64, grade float64, feedback string) (*models.Submission, error) {
	var maxScore float64
	query := s.Converter(`
		SELECT a.max_score
		FROM submissions s
		JOIN activities a ON a.id = s.activity_id
		WHERE s.id = ?
	`)
	err := s.DB.Get(&maxScore, query, submissionID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("submission %d not found", submissionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load submission: %w", err)
	}
	if grade < 0 || grade > maxScore {
		return nil, fmt.Errorf("grade %.2f is outside [0, %.2f]", grade, maxScore)
	}

	update := s.Converter(`
		UPDATE submissions
		SET grade = ?, feedback = ?, graded_at = ?
		WHERE id = ?
	`)
	if _, err := s.DB.Exec(update, grade, feedback, time.Now().Unix(), submissionID); err != nil {
		return nil, fmt.Errorf("failed to grade submission: %w", err)
	}

	var submission models.Submission
	get := s.Converter(`
		SELECT id, activity_id, student_id, file_ref, grade, feedback, submitted_at, graded_at
		FROM submissions
		WHERE id = ?
	`)
	if err := s.DB.Get(&submission, get, submissionID); err != nil {
		return nil, fmt.Errorf("failed to reload submission: %w", err)
	}
	return &submission, nil
}

// GetGradedItems returns only submissions with a grade whose backing
// activity is active with sequence > 0, ordered so that duplicate
// (kind, sequence) rows resolve deterministically.
func (s *BaseStore) GetGradedItems(studentID string, offeringID int64) ([]models.GradedItem, error) {
	var items []models.GradedItem
	query := s.Converter(`
		SELECT a.kind, a.sequence, s.grade
		FROM submissions s
		JOIN activities a ON a.id = s.activity_id
		WHERE s.student_id = ?
		AND a.offering_id = ?
		AND s.grade IS NOT NULL
		AND a.active = TRUE
		AND a.sequence > 0
		ORDER BY a.kind, a.sequence, a.id ASC
	`)

	err := s.DB.Select(&items, query, studentID, offeringID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch graded items: %w", err)
	}
	return items, nil
}

func (s *BaseStore) GetGradeRecord(studentID string, offeringID int64) (*models.GradeRecord, error) {
	var records []models.GradeRecord
	query := s.Converter(`
		SELECT student_id, offering_id, final_grade, attendance
		FROM grade_records
		WHERE student_id = ? AND offering_id = ?
	`)

	err := s.DB.Select(&records, query, studentID, offeringID)
	if err != nil {
		return nil, fmt.Errorf("failed to get grade record: %w", err)
	}
	switch len(records) {
	case 0:
		return nil, nil
	case 1:
		return &records[0], nil
	default:
		return nil, fmt.Errorf("student %s offering %d: %w", studentID, offeringID, ErrDuplicateRecord)
	}
}

func (s *BaseStore) UpsertGradeRecord(record models.GradeRecord) error {
	_, err := s.DB.NamedExec(`
		INSERT INTO grade_records (student_id, offering_id, final_grade, attendance)
		VALUES (:student_id, :offering_id, :final_grade, :attendance)
		ON CONFLICT(offering_id, student_id) DO UPDATE SET
		final_grade = :final_grade,
		attendance = :attendance
	`, record)
	if err != nil {
		return fmt.Errorf("failed to upsert grade record: %w", err)
	}
	return nil
}

func (s *BaseStore) ListOfferingRecords(offeringID int64) ([]models.GradeRecord, error) {
	var records []models.GradeRecord
	query := s.Converter(`
		SELECT student_id, offering_id, final_grade, attendance
		FROM grade_records
		WHERE offering_id = ?
		ORDER BY student_id
	`)

	err := s.DB.Select(&records, query, offeringID)
	if err != nil {
		return nil, fmt.Errorf("failed to list offering records: %w", err)
	}
	return records, nil
}

func (s *BaseStore) ListStudentRecords(studentID string) ([]models.StudentRecord, error) {
	var records []models.StudentRecord
	query := s.Converter(`
		SELECT r.student_id, r.offering_id, o.subject, r.final_grade, r.attendance
		FROM grade_records r
		JOIN offerings o ON o.id = r.offering_id
		WHERE r.student_id = ?
		ORDER BY o.subject, r.offering_id
	`)

	err := s.DB.Select(&records, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list student records: %w", err)
	}
	return records, nil
}

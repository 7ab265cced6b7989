package models

import (
	"github.com/go-playground/validator/v10"
)

// GradeRecord is the boletim row: the authoritative final grade and
// attendance for one (student, offering) pair. One row per pair, written
// only through the grading manager.
type GradeRecord struct {
	StudentID  string  `db:"student_id" json:"student_id" validate:"required"`
	OfferingID int64   `db:"offering_id" json:"offering_id" validate:"required"`
	FinalGrade float64 `db:"final_grade" json:"final_grade" validate:"gte=0,lte=10"`
	Attendance float64 `db:"attendance" json:"attendance" validate:"gte=0,lte=100"`
}

// Offering pairs one class with one subject and the teacher assigned to it.
type Offering struct {
	ID        int64  `db:"id" json:"id"`
	ClassID   int64  `db:"class_id" json:"class_id" validate:"required"`
	Subject   string `db:"subject" json:"subject" validate:"required"`
	TeacherID string `db:"teacher_id" json:"teacher_id"`
}

// StudentRecord is a GradeRecord joined with the subject of its offering,
// the shape the report and student views read.
type StudentRecord struct {
	StudentID  string  `db:"student_id" json:"student_id"`
	OfferingID int64   `db:"offering_id" json:"offering_id"`
	Subject    string  `db:"subject" json:"subject"`
	FinalGrade float64 `db:"final_grade" json:"final_grade"`
	Attendance float64 `db:"attendance" json:"attendance"`
}

func (r *GradeRecord) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

func (o *Offering) Validate() error {
	validate := validator.New()
	return validate.Struct(o)
}

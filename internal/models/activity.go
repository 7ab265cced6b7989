package models

import (
	"github.com/go-playground/validator/v10"
)

type ActivityKind string

const (
	KindExam       ActivityKind = "exam"
	KindAssignment ActivityKind = "assignment"
)

// Activity is one gradable unit of a class-subject offering. Sequence 3 of
// kind "exam" is the make-up exam. (kind, sequence) is unique among active
// activities of one offering; the unique index enforces it.
type Activity struct {
	ID         int64        `db:"id" json:"id"`
	OfferingID int64        `db:"offering_id" json:"offering_id" validate:"required"`
	Kind       ActivityKind `db:"kind" json:"kind" validate:"required,oneof=exam assignment"`
	Sequence   int          `db:"sequence" json:"sequence" validate:"required,min=1,max=3"`
	Title      string       `db:"title" json:"title" validate:"required"`
	DueDate    int64        `db:"due_date" json:"due_date"`
	Weight     float64      `db:"weight" json:"weight" validate:"gte=0"`
	MaxScore   float64      `db:"max_score" json:"max_score" validate:"gt=0,lte=10"`
	Active     bool         `db:"active" json:"active"`
}

// Submission is one student's delivered work against one activity.
// Grade is nil until the teacher grades it; "ungraded" is never the same
// thing as "graded zero".
type Submission struct {
	ID          int64    `db:"id" json:"id"`
	ActivityID  int64    `db:"activity_id" json:"activity_id" validate:"required"`
	StudentID   string   `db:"student_id" json:"student_id" validate:"required"`
	FileRef     string   `db:"file_ref" json:"file_ref"`
	Grade       *float64 `db:"grade" json:"grade,omitempty" validate:"omitempty,gte=0,lte=10"`
	Feedback    string   `db:"feedback" json:"feedback"`
	SubmittedAt int64    `db:"submitted_at" json:"submitted_at"`
	GradedAt    *int64   `db:"graded_at" json:"graded_at,omitempty"`
}

// GradedItem is the slim row the aggregator consumes: one graded submission
// keyed by the slot of its backing activity.
type GradedItem struct {
	Kind     ActivityKind `db:"kind"`
	Sequence int          `db:"sequence"`
	Grade    float64      `db:"grade"`
}

func (a *Activity) Validate() error {
	validate := validator.New()
	return validate.Struct(a)
}

func (s *Submission) Validate() error {
	validate := validator.New()
	return validate.Struct(s)
}

package assignment

import (
	"time"

	"github.com/trezcool/peergrade/core"
)

// Timeliness classifies a submission attempt against the effective due date.
type Timeliness string

const (
	OnTime Timeliness = "ON_TIME"
	Late   Timeliness = "LATE"
)

// ClassifyAt classifies an attempt against a due date. An attempt at the due
// date exactly is on time.
func ClassifyAt(due, attempt time.Time) Timeliness {
	if attempt.After(due) {
		return Late
	}
	return OnTime
}

type Assignment struct {
	ID          string    `json:"id"`
	ClassID     string    `json:"class_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"due_date"` // UTC
	// IsGroup is fixed at creation: an assignment is either always
	// individual- or always group-submitted.
	IsGroup   bool      `json:"is_group"`
	FilePath  string    `json:"file_path"`
	RubricID  string    `json:"rubric_id,omitempty"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// Extension overrides the base due date for exactly one student on exactly
// one assignment. At most one exists per (assignment, student); granting a
// second replaces the first.
type Extension struct {
	ID           string    `json:"id"`
	AssignmentID string    `json:"assignment_id"`
	StudentID    string    `json:"student_id"`
	NewDueDate   time.Time `json:"new_due_date"` // UTC
	CreatedAt    time.Time `json:"created_at"`   // UTC
	UpdatedAt    time.Time `json:"updated_at"`   // UTC
}

// Rubric is the scoring grid for an assignment, an ordered set of criteria.
type Rubric struct {
	ID           string      `json:"id"`
	AssignmentID string      `json:"assignment_id"`
	Title        string      `json:"title"`
	Criteria     []Criterion `json:"criteria"`
}

// Criterion is one scored dimension of a Rubric.
type Criterion struct {
	ID        string  `json:"id"`
	RubricID  string  `json:"rubric_id"`
	Title     string  `json:"title"`
	MaxPoints float64 `json:"max_points"`
	Weight    float64 `json:"weight"`
	Position  int     `json:"position"`
}

// TotalWeight sums the raw criterion weights; weight shares are computed
// against it.
func (r Rubric) TotalWeight() float64 {
	var total float64
	for _, c := range r.Criteria {
		total += c.Weight
	}
	return total
}

// NewAssignment contains information needed to create a new Assignment,
// optionally with its Rubric.
type NewAssignment struct {
	ClassID     string         `json:"class_id" validate:"required,uuid4"`
	Title       string         `json:"title" validate:"required"`
	Description string         `json:"description"`
	DueDate     time.Time      `json:"due_date" validate:"required"`
	IsGroup     bool           `json:"is_group"`
	FilePath    string         `json:"file_path"`
	Rubric      *NewRubric     `json:"rubric" validate:"omitempty"`
}

type NewRubric struct {
	Title    string         `json:"title" validate:"required"`
	Criteria []NewCriterion `json:"criteria" validate:"required,min=1,dive"`
}

type NewCriterion struct {
	Title     string  `json:"title" validate:"required"`
	MaxPoints float64 `json:"max_points" validate:"required,gt=0"`
	Weight    float64 `json:"weight" validate:"required,gt=0"`
}

func (na *NewAssignment) Validate() error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	return core.Validate.Struct(na)
}

// NewExtension contains information needed to grant (or replace) a deadline
// extension.
type NewExtension struct {
	AssignmentID string    `json:"assignment_id" validate:"required,uuid4"`
	StudentID    string    `json:"student_id" validate:"required,uuid4"`
	NewDueDate   time.Time `json:"new_due_date" validate:"required"`
}

func (ne *NewExtension) Validate() error { return core.Validate.Struct(ne) }

package submission

import (
	"time"

	"github.com/trezcool/peergrade/core"
	"github.com/trezcool/peergrade/core/assignment"
)

// Display statuses derived from submission history and timeliness.
const (
	StatusSubmitted    = "Submitted"
	StatusMissing      = "Missing"
	StatusNotSubmitted = "Not Submitted"
)

// Submission is one history entry for an assignment. Exactly one of
// SubmitterID or SubmitterGroupID is set, fixed at creation. FinalGrade is
// derived by aggregation, never set directly.
type Submission struct {
	ID               string   `json:"id"`
	AssignmentID     string   `json:"assignment_id"`
	SubmitterID      string   `json:"submitter_id,omitempty"`
	SubmitterGroupID string   `json:"submitter_group_id,omitempty"`
	FilePath         string   `json:"file_path"`
	FinalGrade       *float64 `json:"final_grade,omitempty"`
	// Version guards final-grade recomputation against lost updates.
	Version   int       `json:"-"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC

	// Timeliness is computed at creation time against the effective due
	// date; informational only, never persisted.
	Timeliness assignment.Timeliness `json:"timeliness,omitempty"`
}

func (s Submission) IsGroup() bool { return s.SubmitterGroupID != "" }

// Review is one rubric-scored review of a Submission, peer or instructor
// depending on the reviewer's role at creation.
type Review struct {
	ID           string           `json:"id"`
	SubmissionID string           `json:"submission_id"`
	ReviewerID   string           `json:"reviewer_id"`
	ReviewerRole string           `json:"reviewer_role"`
	ReviewGrade  float64          `json:"review_grade"`
	Grades       []CriterionGrade `json:"grades"`
	CreatedAt    time.Time        `json:"created_at"` // UTC
	UpdatedAt    time.Time        `json:"updated_at"` // UTC
}

type CriterionGrade struct {
	ID          string  `json:"id"`
	ReviewID    string  `json:"review_id"`
	CriterionID string  `json:"criterion_id"`
	Grade       float64 `json:"grade"`
	Comment     string  `json:"comment"`
}

// IdentityKind discriminates the submitting identity of a Submission.
type IdentityKind int

const (
	IdentityStudent IdentityKind = iota
	IdentityGroup
)

// Identity is the individual student or group authorized to own a Submission
// for a given Assignment. Resolved on every attempt; never cached.
type Identity struct {
	Kind      IdentityKind
	StudentID string
	GroupID   string
	// MemberIDs holds the group's member ids when Kind is IdentityGroup.
	MemberIDs []string
}

// NewSubmission contains information needed to create a new Submission.
type NewSubmission struct {
	StudentID    string `json:"student_id" validate:"required,uuid4"`
	AssignmentID string `json:"assignment_id" validate:"required,uuid4"`
	FilePath     string `json:"file_path" validate:"required"`
}

func (ns *NewSubmission) Validate() error {
	ns.FilePath = core.CleanString(ns.FilePath)
	return core.Validate.Struct(ns)
}

// NewReview contains information needed to create a new Review.
type NewReview struct {
	SubmissionID string              `json:"submission_id" validate:"required,uuid4"`
	ReviewerID   string              `json:"reviewer_id" validate:"required,uuid4"`
	ReviewGrade  float64             `json:"review_grade" validate:"gte=0"`
	Grades       []NewCriterionGrade `json:"grades" validate:"required,min=1,dive"`
}

func (nr *NewReview) Validate() error { return core.Validate.Struct(nr) }

type NewCriterionGrade struct {
	CriterionID string  `json:"criterion_id" validate:"required,uuid4"`
	Grade       float64 `json:"grade" validate:"gte=0"`
	Comment     string  `json:"comment"`
}

// UpdateReview defines what information may be provided to modify an existing
// Review. The full set of criterion grades is replaced, never patched.
type UpdateReview struct {
	ReviewGrade float64             `json:"review_grade" validate:"gte=0"`
	Grades      []NewCriterionGrade `json:"grades" validate:"required,min=1,dive"`
}

func (ur *UpdateReview) Validate() error { return core.Validate.Struct(ur) }

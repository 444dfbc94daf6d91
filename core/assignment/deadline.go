package assignment

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/peergrade/core"
)

// DeadlinePolicy computes the due date actually applicable to a student after
// extension overrides, and classifies submission attempts against it. It
// never blocks late work; rejection, if any, is the caller's decision.
type DeadlinePolicy struct {
	repo Repository
}

func NewDeadlinePolicy(repo Repository) *DeadlinePolicy {
	return &DeadlinePolicy{repo: repo}
}

// EffectiveDueDate returns the student's extension date when one exists,
// the assignment's base due date otherwise.
func (p *DeadlinePolicy) EffectiveDueDate(ctx context.Context, assignmentID, studentID string, exec ...core.DBExecutor) (time.Time, error) {
	asg, err := p.repo.GetAssignmentByID(ctx, assignmentID, exec...)
	if err != nil {
		return time.Time{}, err
	}
	ext, err := p.repo.GetExtension(ctx, assignmentID, studentID, exec...)
	if err != nil {
		if errors.Cause(err) == ErrExtensionNotFound {
			return asg.DueDate, nil
		}
		return time.Time{}, err
	}
	return ext.NewDueDate, nil
}

// EffectiveDueDateForMembers returns the latest of the given students'
// effective due dates, each computed as in EffectiveDueDate (extension when
// one exists, base otherwise). Extensions are keyed to students, not groups;
// a single extended member's accommodation benefits the whole group. An
// unextended member keeps the base date, so the group deadline only moves
// earlier than base when every member holds an earlier extension.
func (p *DeadlinePolicy) EffectiveDueDateForMembers(ctx context.Context, assignmentID string, studentIDs []string, exec ...core.DBExecutor) (time.Time, error) {
	asg, err := p.repo.GetAssignmentByID(ctx, assignmentID, exec...)
	if err != nil {
		return time.Time{}, err
	}
	exts, err := p.repo.QueryExtensionsByAssignmentID(ctx, assignmentID, exec...)
	if err != nil {
		return time.Time{}, err
	}
	byStudent := make(map[string]Extension, len(exts))
	for _, ext := range exts {
		byStudent[ext.StudentID] = ext
	}

	var due time.Time
	for _, id := range studentIDs {
		effective := asg.DueDate
		if ext, ok := byStudent[id]; ok {
			effective = ext.NewDueDate
		}
		if effective.After(due) {
			due = effective
		}
	}
	if due.IsZero() { // no members
		due = asg.DueDate
	}
	return due, nil
}

// Classify reports whether an attempt at `attempt` is on time or late for the
// given student.
func (p *DeadlinePolicy) Classify(ctx context.Context, assignmentID, studentID string, attempt time.Time, exec ...core.DBExecutor) (Timeliness, error) {
	due, err := p.EffectiveDueDate(ctx, assignmentID, studentID, exec...)
	if err != nil {
		return "", err
	}
	return ClassifyAt(due, attempt), nil
}

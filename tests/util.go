// Package testutil provides shared fixtures for package tests, built on the
// in-memory storage implementation.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/peergrade/core/assignment"
	"github.com/trezcool/peergrade/core/school"
	"github.com/trezcool/peergrade/core/submission"
	"github.com/trezcool/peergrade/core/user"
	"github.com/trezcool/peergrade/storage/database/inmem"
)

// Repos bundles an in-memory store with every repository bound to it.
type Repos struct {
	DB         *inmem.DB
	User       user.Repository
	School     school.Repository
	Assignment assignment.Repository
	Submission submission.Repository
}

func NewRepos() *Repos {
	db := inmem.NewDB()
	return &Repos{
		DB:         db,
		User:       inmem.NewUserRepository(db),
		School:     inmem.NewSchoolRepository(db),
		Assignment: inmem.NewAssignmentRepository(db),
		Submission: inmem.NewSubmissionRepository(db),
	}
}

func CreateUser(t *testing.T, repo user.Repository, name, email, role string) user.User {
	t.Helper()
	now := time.Now().UTC()
	usr, err := repo.CreateUser(context.Background(), user.User{
		Name:      name,
		Username:  name,
		Email:     email,
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateClass(t *testing.T, repo school.Repository, name, instructorID string, studentIDs ...string) school.Class {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	cls, err := repo.CreateClass(ctx, school.Class{
		Name:         name,
		InstructorID: instructorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	for _, id := range studentIDs {
		if err = repo.EnrollStudent(ctx, cls.ID, id); err != nil {
			t.Fatalf("CreateClass() enroll failed: %v", err)
		}
	}
	return cls
}

func CreateGroup(t *testing.T, repo school.Repository, classID, name string, memberIDs ...string) school.Group {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	grp, err := repo.CreateGroup(ctx, school.Group{
		ClassID:   classID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateGroup() failed: %v", err)
	}
	for _, id := range memberIDs {
		if err = repo.AddGroupMember(ctx, grp.ID, id); err != nil {
			t.Fatalf("CreateGroup() add member failed: %v", err)
		}
	}
	return grp
}

// SimpleRubric builds an unsaved two-criterion rubric: Content (max 100,
// weight 3) and Style (max 100, weight 1).
func SimpleRubric() *assignment.Rubric {
	return &assignment.Rubric{
		Title: "Default rubric",
		Criteria: []assignment.Criterion{
			{Title: "Content", MaxPoints: 100, Weight: 3, Position: 0},
			{Title: "Style", MaxPoints: 100, Weight: 1, Position: 1},
		},
	}
}

func CreateAssignment(t *testing.T, repo assignment.Repository, classID string, due time.Time, isGroup bool, rub *assignment.Rubric) assignment.Assignment {
	t.Helper()
	now := time.Now().UTC()
	asg, err := repo.CreateAssignment(context.Background(), assignment.Assignment{
		ClassID:   classID,
		Title:     "Assignment",
		DueDate:   due.UTC(),
		IsGroup:   isGroup,
		CreatedAt: now,
		UpdatedAt: now,
	}, rub)
	if err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	return asg
}

func GrantExtension(t *testing.T, repo assignment.Repository, assignmentID, studentID string, due time.Time) assignment.Extension {
	t.Helper()
	now := time.Now().UTC()
	ext, err := repo.UpsertExtension(context.Background(), assignment.Extension{
		AssignmentID: assignmentID,
		StudentID:    studentID,
		NewDueDate:   due.UTC(),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("GrantExtension() failed: %v", err)
	}
	return ext
}

func CreateSubmission(t *testing.T, repo submission.Repository, assignmentID, submitterID, groupID string) submission.Submission {
	t.Helper()
	now := time.Now().UTC()
	sub, err := repo.CreateSubmission(context.Background(), submission.Submission{
		AssignmentID:     assignmentID,
		SubmitterID:      submitterID,
		SubmitterGroupID: groupID,
		FilePath:         "uploads/essay.pdf",
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		t.Fatalf("CreateSubmission() failed: %v", err)
	}
	return sub
}

// CreateReview persists a review whose total is the recomputed weighted sum of
// the given per-criterion grades, in rubric criterion order.
func CreateReview(t *testing.T, repo submission.Repository, rub assignment.Rubric, sub submission.Submission, reviewer user.User, updatedAt time.Time, grades ...float64) submission.Review {
	t.Helper()
	if len(grades) != len(rub.Criteria) {
		t.Fatalf("CreateReview(): %d grades for %d criteria", len(grades), len(rub.Criteria))
	}
	rev := submission.Review{
		SubmissionID: sub.ID,
		ReviewerID:   reviewer.ID,
		ReviewerRole: reviewer.Role,
		CreatedAt:    updatedAt.UTC(),
		UpdatedAt:    updatedAt.UTC(),
	}
	for i, crit := range rub.Criteria {
		rev.Grades = append(rev.Grades, submission.CriterionGrade{
			CriterionID: crit.ID,
			Grade:       grades[i],
		})
	}
	total, err := submission.ComputeReviewGrade(rev.Grades, rub)
	if err != nil {
		t.Fatalf("CreateReview() failed: %v", err)
	}
	rev.ReviewGrade = total

	rev, err = repo.CreateReview(context.Background(), rev)
	if err != nil {
		t.Fatalf("CreateReview() failed: %v", err)
	}
	return rev
}

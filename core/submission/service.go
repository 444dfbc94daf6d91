package submission

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/peergrade/core"
	"github.com/trezcool/peergrade/core/assignment"
	"github.com/trezcool/peergrade/core/school"
	"github.com/trezcool/peergrade/core/user"
)

var (
	// errors
	ErrNotFound       = errors.New("submission not found")
	ErrReviewNotFound = errors.New("review not found")

	// ErrInvalidSubmitter reports an eligibility rule violation: not
	// enrolled, not grouped, or empty group.
	ErrInvalidSubmitter = errors.New("invalid submitter")

	// ErrInvalidGrade reports a criterion grade out of range or a rubric
	// mismatch.
	ErrInvalidGrade = errors.New("invalid grade")

	// ErrAggregationConflict reports a concurrent write detected during
	// final-grade recomputation; retryable after reloading state.
	ErrAggregationConflict = errors.New("aggregation conflict")
)

type (
	Repository interface {
		CreateSubmission(ctx context.Context, sub Submission, exec ...core.DBExecutor) (Submission, error)
		GetSubmissionByID(ctx context.Context, id string, exec ...core.DBExecutor) (Submission, error)
		// QuerySubmissionsByAssignmentID returns history entries ordered by
		// (created_at, id) descending.
		QuerySubmissionsByAssignmentID(ctx context.Context, assignmentID string, exec ...core.DBExecutor) ([]Submission, error)
		// QuerySubmissionsBySubmitter returns all submissions owned by the
		// student individually or by any of the given groups, ordered by
		// (created_at, id) descending.
		QuerySubmissionsBySubmitter(ctx context.Context, studentID string, groupIDs []string, exec ...core.DBExecutor) ([]Submission, error)
		// SetFinalGrade persists the derived grade iff the stored version
		// still matches; ErrAggregationConflict otherwise.
		SetFinalGrade(ctx context.Context, id string, grade *float64, version int, exec ...core.DBExecutor) error

		CreateReview(ctx context.Context, rev Review, exec ...core.DBExecutor) (Review, error)
		UpdateReview(ctx context.Context, rev Review, exec ...core.DBExecutor) (Review, error)
		DeleteReview(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetReviewByID(ctx context.Context, id string, exec ...core.DBExecutor) (Review, error)
		QueryReviewsBySubmissionID(ctx context.Context, submissionID string, exec ...core.DBExecutor) ([]Review, error)
	}

	// Service orchestrates submitter resolution, deadline classification and
	// grade aggregation. It is the only write path for Submission and grade
	// state.
	Service struct {
		db         core.DB
		repo       Repository
		usrRepo    user.Repository
		schoolRepo school.Repository
		asgRepo    assignment.Repository
		resolver   *Resolver
		deadline   *assignment.DeadlinePolicy
		aggregator *Aggregator
		mailSvc    core.EmailService
	}
)

func NewService(
	db core.DB,
	repo Repository,
	usrRepo user.Repository,
	schoolRepo school.Repository,
	asgRepo assignment.Repository,
	mailSvc core.EmailService,
) *Service {
	return &Service{
		db:         db,
		repo:       repo,
		usrRepo:    usrRepo,
		schoolRepo: schoolRepo,
		asgRepo:    asgRepo,
		resolver:   NewResolver(usrRepo, schoolRepo, asgRepo),
		deadline:   assignment.NewDeadlinePolicy(asgRepo),
		aggregator: NewAggregator(db, repo, asgRepo),
		mailSvc:    mailSvc,
	}
}

// Resolve exposes submitter resolution to the surrounding system.
func (svc *Service) Resolve(ctx context.Context, studentID, assignmentID string) (Identity, error) {
	return svc.resolver.Resolve(ctx, studentID, assignmentID)
}

// Deadline exposes the deadline policy to the surrounding system.
func (svc *Service) Deadline() *assignment.DeadlinePolicy { return svc.deadline }

// CreateSubmission resolves the submitting identity, classifies timeliness
// against the effective due date and appends a new history entry. Late
// attempts are recorded, not rejected.
func (svc *Service) CreateSubmission(ctx context.Context, ns NewSubmission) (Submission, error) {
	if err := ns.Validate(); err != nil {
		return Submission{}, err
	}

	ident, err := svc.resolver.Resolve(ctx, ns.StudentID, ns.AssignmentID)
	if err != nil {
		return Submission{}, err
	}

	var due time.Time
	if ident.Kind == IdentityGroup {
		due, err = svc.deadline.EffectiveDueDateForMembers(ctx, ns.AssignmentID, ident.MemberIDs)
	} else {
		due, err = svc.deadline.EffectiveDueDate(ctx, ns.AssignmentID, ns.StudentID)
	}
	if err != nil {
		return Submission{}, err
	}

	now := time.Now().UTC()
	sub := Submission{
		AssignmentID: ns.AssignmentID,
		FilePath:     ns.FilePath,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if ident.Kind == IdentityGroup {
		sub.SubmitterGroupID = ident.GroupID
	} else {
		sub.SubmitterID = ident.StudentID
	}

	sub, err = svc.repo.CreateSubmission(ctx, sub)
	if err != nil {
		return Submission{}, err
	}
	sub.Timeliness = assignment.ClassifyAt(due, now)
	return sub, nil
}

// FinalizeGrade recomputes the submission's final grade from its current
// counted review set. Idempotent when no review changed.
func (svc *Service) FinalizeGrade(ctx context.Context, submissionID string) error {
	_, err := svc.aggregator.Aggregate(ctx, submissionID)
	return err
}

// ValidateReview exposes rubric validation to the surrounding system.
func (svc *Service) ValidateReview(rev Review, rub assignment.Rubric) error {
	return svc.aggregator.ValidateReview(rev, rub)
}

// CreateReview validates the review against the assignment's rubric, then
// persists it and the recomputed final grade in one transaction.
func (svc *Service) CreateReview(ctx context.Context, nr NewReview) (Review, error) {
	if err := nr.Validate(); err != nil {
		return Review{}, err
	}
	reviewer, err := svc.usrRepo.GetUserByID(ctx, nr.ReviewerID)
	if err != nil {
		return Review{}, err
	}
	sub, err := svc.repo.GetSubmissionByID(ctx, nr.SubmissionID)
	if err != nil {
		return Review{}, err
	}
	rub, err := svc.asgRepo.GetRubricByAssignmentID(ctx, sub.AssignmentID)
	if err != nil {
		return Review{}, err
	}

	now := time.Now().UTC()
	rev := Review{
		SubmissionID: nr.SubmissionID,
		ReviewerID:   reviewer.ID,
		ReviewerRole: reviewer.Role,
		ReviewGrade:  nr.ReviewGrade,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, ng := range nr.Grades {
		rev.Grades = append(rev.Grades, CriterionGrade{
			CriterionID: ng.CriterionID,
			Grade:       ng.Grade,
			Comment:     ng.Comment,
		})
	}
	if err = svc.aggregator.ValidateReview(rev, rub); err != nil {
		return Review{}, err
	}

	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return Review{}, errors.Wrap(err, "beginning review tx")
	}
	rev, err = svc.repo.CreateReview(ctx, rev, tx)
	if err != nil {
		_ = tx.Rollback()
		return Review{}, err
	}
	grade, err := svc.aggregator.compute(ctx, sub, tx)
	if err != nil {
		_ = tx.Rollback()
		return Review{}, err
	}
	if err = svc.repo.SetFinalGrade(ctx, sub.ID, grade, sub.Version, tx); err != nil {
		_ = tx.Rollback()
		return Review{}, err
	}
	if err = tx.Commit(); err != nil {
		return Review{}, errors.Wrap(err, "committing review tx")
	}

	if reviewer.IsInstructor() && grade != nil {
		svc.sendGradeFinalizedMail(ctx, sub, *grade)
	}
	return rev, nil
}

// UpdateReview replaces the review's grades and total, then recomputes the
// final grade in the same transaction.
func (svc *Service) UpdateReview(ctx context.Context, id string, ur UpdateReview) (Review, error) {
	if err := ur.Validate(); err != nil {
		return Review{}, err
	}
	rev, err := svc.repo.GetReviewByID(ctx, id)
	if err != nil {
		return Review{}, err
	}
	sub, err := svc.repo.GetSubmissionByID(ctx, rev.SubmissionID)
	if err != nil {
		return Review{}, err
	}
	rub, err := svc.asgRepo.GetRubricByAssignmentID(ctx, sub.AssignmentID)
	if err != nil {
		return Review{}, err
	}

	rev.ReviewGrade = ur.ReviewGrade
	rev.Grades = rev.Grades[:0]
	for _, ng := range ur.Grades {
		rev.Grades = append(rev.Grades, CriterionGrade{
			ReviewID:    rev.ID,
			CriterionID: ng.CriterionID,
			Grade:       ng.Grade,
			Comment:     ng.Comment,
		})
	}
	rev.UpdatedAt = time.Now().UTC()
	if err = svc.aggregator.ValidateReview(rev, rub); err != nil {
		return Review{}, err
	}

	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return Review{}, errors.Wrap(err, "beginning review tx")
	}
	rev, err = svc.repo.UpdateReview(ctx, rev, tx)
	if err != nil {
		_ = tx.Rollback()
		return Review{}, err
	}
	grade, err := svc.aggregator.compute(ctx, sub, tx)
	if err != nil {
		_ = tx.Rollback()
		return Review{}, err
	}
	if err = svc.repo.SetFinalGrade(ctx, sub.ID, grade, sub.Version, tx); err != nil {
		_ = tx.Rollback()
		return Review{}, err
	}
	if err = tx.Commit(); err != nil {
		return Review{}, errors.Wrap(err, "committing review tx")
	}
	return rev, nil
}

// DeleteReview removes the review and recomputes the final grade in the same
// transaction.
func (svc *Service) DeleteReview(ctx context.Context, id string) error {
	rev, err := svc.repo.GetReviewByID(ctx, id)
	if err != nil {
		return err
	}
	sub, err := svc.repo.GetSubmissionByID(ctx, rev.SubmissionID)
	if err != nil {
		return err
	}

	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning review tx")
	}
	if err = svc.repo.DeleteReview(ctx, id, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	grade, err := svc.aggregator.compute(ctx, sub, tx)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if err = svc.repo.SetFinalGrade(ctx, sub.ID, grade, sub.Version, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing review tx")
}

func (svc *Service) GetByID(ctx context.Context, id string) (Submission, error) {
	return svc.repo.GetSubmissionByID(ctx, id)
}

func (svc *Service) GetReview(ctx context.Context, id string) (Review, error) {
	return svc.repo.GetReviewByID(ctx, id)
}

func (svc *Service) QueryReviews(ctx context.Context, submissionID string) ([]Review, error) {
	return svc.repo.QueryReviewsBySubmissionID(ctx, submissionID)
}

func (svc *Service) QueryForAssignment(ctx context.Context, assignmentID string) ([]Submission, error) {
	return svc.repo.QuerySubmissionsByAssignmentID(ctx, assignmentID)
}

// QueryForStudent returns the student's submission history: their individual
// submissions plus those of every group they belong to.
func (svc *Service) QueryForStudent(ctx context.Context, studentID string) ([]Submission, error) {
	groups, err := svc.schoolRepo.QueryGroupsForUser(ctx, studentID)
	if err != nil {
		return nil, err
	}
	groupIDs := make([]string, 0, len(groups))
	for _, g := range groups {
		groupIDs = append(groupIDs, g.ID)
	}
	return svc.repo.QuerySubmissionsBySubmitter(ctx, studentID, groupIDs)
}

// Latest returns the authoritative (most recent) submission of the student's
// identity for an assignment; ErrNotFound when the identity never submitted.
func (svc *Service) Latest(ctx context.Context, assignmentID, studentID string) (Submission, error) {
	ident, err := svc.resolver.Resolve(ctx, studentID, assignmentID)
	if err != nil {
		return Submission{}, err
	}
	subs, err := svc.repo.QuerySubmissionsByAssignmentID(ctx, assignmentID)
	if err != nil {
		return Submission{}, err
	}
	for _, sub := range subs { // ordered most recent first
		if ident.Kind == IdentityGroup && sub.SubmitterGroupID == ident.GroupID {
			return sub, nil
		}
		if ident.Kind == IdentityStudent && sub.SubmitterID == ident.StudentID {
			return sub, nil
		}
	}
	return Submission{}, ErrNotFound
}

// Status derives the display status of a student's identity on an assignment:
// Submitted when any history entry exists, Missing when none exists past the
// effective due date, Not Submitted otherwise.
func (svc *Service) Status(ctx context.Context, assignmentID, studentID string) (string, error) {
	ident, err := svc.resolver.Resolve(ctx, studentID, assignmentID)
	if err != nil {
		return "", err
	}
	if _, err = svc.Latest(ctx, assignmentID, studentID); err == nil {
		return StatusSubmitted, nil
	} else if errors.Cause(err) != ErrNotFound {
		return "", err
	}

	var due time.Time
	if ident.Kind == IdentityGroup {
		due, err = svc.deadline.EffectiveDueDateForMembers(ctx, assignmentID, ident.MemberIDs)
	} else {
		due, err = svc.deadline.EffectiveDueDate(ctx, assignmentID, studentID)
	}
	if err != nil {
		return "", err
	}
	if assignment.ClassifyAt(due, time.Now().UTC()) == assignment.Late {
		return StatusMissing, nil
	}
	return StatusNotSubmitted, nil
}

// sendGradeFinalizedMail notifies the submitter(s) that an authoritative
// grade landed. Best effort: lookup failures are swallowed, delivery is the
// email service's concern.
func (svc *Service) sendGradeFinalizedMail(ctx context.Context, sub Submission, grade float64) {
	var recipients []mail.Address
	if sub.IsGroup() {
		memberIDs, err := svc.schoolRepo.QueryGroupMemberIDs(ctx, sub.SubmitterGroupID)
		if err != nil {
			return
		}
		for _, id := range memberIDs {
			if usr, err := svc.usrRepo.GetUserByID(ctx, id); err == nil {
				recipients = append(recipients, mail.Address{Name: usr.Name, Address: usr.Email})
			}
		}
	} else if usr, err := svc.usrRepo.GetUserByID(ctx, sub.SubmitterID); err == nil {
		recipients = append(recipients, mail.Address{Name: usr.Name, Address: usr.Email})
	}
	if len(recipients) == 0 {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           recipients,
		Subject:      "Your submission has been graded",
		TemplateName: "grade-finalized",
		TemplateData: struct {
			Grade string
		}{fmt.Sprintf("%.2f", grade)},
	})
}

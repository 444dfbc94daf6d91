package submission

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/trezcool/peergrade/core"
	"github.com/trezcool/peergrade/core/assignment"
	"github.com/trezcool/peergrade/core/user"
)

// gradeEpsilon absorbs float noise when comparing grades already rounded to
// 2 decimal places.
const gradeEpsilon = 0.005

// Aggregator validates rubric conformance of reviews and collapses the
// counted review set of a submission into its final grade.
//
// An instructor review is authoritative; with several, the most recently
// updated one wins. Without one, the final grade is the mean of counted peer
// review grades. Without any counted review the final grade stays unset.
type Aggregator struct {
	db      core.DB
	repo    Repository
	asgRepo assignment.Repository
}

func NewAggregator(db core.DB, repo Repository, asgRepo assignment.Repository) *Aggregator {
	return &Aggregator{db: db, repo: repo, asgRepo: asgRepo}
}

// ValidateReview checks a review against its assignment's rubric: every
// criterion graded exactly once, each grade within [0, MaxPoints], and the
// review's total equal to the recomputed weighted sum. Failures wrap
// ErrInvalidGrade.
func (agg *Aggregator) ValidateReview(rev Review, rub assignment.Rubric) error {
	if len(rub.Criteria) == 0 {
		return errors.Wrap(ErrInvalidGrade, "rubric has no criteria")
	}
	byCriterion := make(map[string]assignment.Criterion, len(rub.Criteria))
	for _, crit := range rub.Criteria {
		byCriterion[crit.ID] = crit
	}

	seen := make(map[string]bool, len(rev.Grades))
	for _, cg := range rev.Grades {
		crit, ok := byCriterion[cg.CriterionID]
		if !ok {
			return errors.Wrapf(ErrInvalidGrade, "grade references unknown criterion %s", cg.CriterionID)
		}
		if seen[cg.CriterionID] {
			return errors.Wrapf(ErrInvalidGrade, "duplicate grade for criterion %q", crit.Title)
		}
		seen[cg.CriterionID] = true
		if cg.Grade < 0 || cg.Grade > crit.MaxPoints {
			return errors.Wrapf(ErrInvalidGrade, "grade %g out of range [0, %g] for criterion %q", cg.Grade, crit.MaxPoints, crit.Title)
		}
	}
	if len(seen) != len(rub.Criteria) {
		return errors.Wrap(ErrInvalidGrade, "review is missing criterion grades")
	}

	computed, err := ComputeReviewGrade(rev.Grades, rub)
	if err != nil {
		return err
	}
	if math.Abs(computed-rev.ReviewGrade) > gradeEpsilon {
		return errors.Wrapf(ErrInvalidGrade, "review grade %.2f does not match computed total %.2f", rev.ReviewGrade, computed)
	}
	return nil
}

// ComputeReviewGrade recomputes a review's total as the weighted sum of its
// criterion grades, weight share = weight / sum(all weights), rounded half-up
// to 2 decimal places.
func ComputeReviewGrade(grades []CriterionGrade, rub assignment.Rubric) (float64, error) {
	totalWeight := rub.TotalWeight()
	if totalWeight <= 0 {
		return 0, errors.Wrap(ErrInvalidGrade, "rubric weights sum to zero")
	}
	byCriterion := make(map[string]assignment.Criterion, len(rub.Criteria))
	for _, crit := range rub.Criteria {
		byCriterion[crit.ID] = crit
	}
	var total float64
	for _, cg := range grades {
		crit, ok := byCriterion[cg.CriterionID]
		if !ok {
			return 0, errors.Wrapf(ErrInvalidGrade, "grade references unknown criterion %s", cg.CriterionID)
		}
		total += cg.Grade * (crit.Weight / totalWeight)
	}
	return core.Round2(total), nil
}

// Aggregate recomputes and persists the submission's final grade from its
// current counted review set. The read-compute-write runs in one transaction;
// a concurrent recomputation surfaces as ErrAggregationConflict, retryable by
// the caller after reloading state. Idempotent when the review set is
// unchanged.
func (agg *Aggregator) Aggregate(ctx context.Context, submissionID string) (*float64, error) {
	tx, err := agg.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "beginning aggregation tx")
	}

	sub, err := agg.repo.GetSubmissionByID(ctx, submissionID, tx)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	grade, err := agg.compute(ctx, sub, tx)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err = agg.repo.SetFinalGrade(ctx, sub.ID, grade, sub.Version, tx); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "committing aggregation tx")
	}
	return grade, nil
}

// compute derives the final grade from the counted review set. Invalid or
// incomplete reviews stay stored but do not contribute.
func (agg *Aggregator) compute(ctx context.Context, sub Submission, exec ...core.DBExecutor) (*float64, error) {
	reviews, err := agg.repo.QueryReviewsBySubmissionID(ctx, sub.ID, exec...)
	if err != nil {
		return nil, err
	}
	if len(reviews) == 0 {
		return nil, nil
	}

	rub, err := agg.asgRepo.GetRubricByAssignmentID(ctx, sub.AssignmentID, exec...)
	if err != nil {
		return nil, err
	}

	var instructor *Review
	var peerSum float64
	var peerCount int
	for i, rev := range reviews {
		if err := agg.ValidateReview(rev, rub); err != nil {
			continue // uncounted
		}
		switch rev.ReviewerRole {
		case user.RoleInstructor:
			if instructor == nil || moreRecent(rev, *instructor) {
				instructor = &reviews[i]
			}
		case user.RoleStudent:
			peerSum += rev.ReviewGrade
			peerCount++
		}
	}

	if instructor != nil {
		grade := core.Round2(instructor.ReviewGrade)
		return &grade, nil
	}
	if peerCount > 0 {
		grade := core.Round2(peerSum / float64(peerCount))
		return &grade, nil
	}
	return nil, nil
}

// moreRecent reports whether a should win over b as the counted instructor
// review; UpdatedAt ties broken by id for determinism.
func moreRecent(a, b Review) bool {
	if a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.ID > b.ID
	}
	return a.UpdatedAt.After(b.UpdatedAt)
}

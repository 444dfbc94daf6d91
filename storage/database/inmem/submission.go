package inmem

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/peergrade/core"
	"github.com/trezcool/peergrade/core/submission"
)

type submissionRepository struct {
	db *DB
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(db *DB) *submissionRepository {
	return &submissionRepository{db: db}
}

func copySubmission(sub submission.Submission) submission.Submission {
	if sub.FinalGrade != nil {
		grade := *sub.FinalGrade
		sub.FinalGrade = &grade
	}
	return sub
}

func copyReview(rev submission.Review) submission.Review {
	rev.Grades = append([]submission.CriterionGrade(nil), rev.Grades...)
	return rev
}

// moreRecent orders submissions by (CreatedAt, ID) descending.
func moreRecent(a, b submission.Submission) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func (repo submissionRepository) CreateSubmission(ctx context.Context, sub submission.Submission, _ ...core.DBExecutor) (submission.Submission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	sub.ID = uuid.New().String()
	sub.Version = 0
	repo.db.submissions[sub.ID] = copySubmission(sub)
	return sub, nil
}

func (repo submissionRepository) GetSubmissionByID(ctx context.Context, id string, _ ...core.DBExecutor) (submission.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	sub, ok := repo.db.submissions[id]
	if !ok {
		return submission.Submission{}, submission.ErrNotFound
	}
	return copySubmission(sub), nil
}

func (repo submissionRepository) QuerySubmissionsByAssignmentID(ctx context.Context, assignmentID string, _ ...core.DBExecutor) ([]submission.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var subs []submission.Submission
	for _, sub := range repo.db.submissions {
		if sub.AssignmentID == assignmentID {
			subs = append(subs, copySubmission(sub))
		}
	}
	sort.Slice(subs, func(i, j int) bool { return moreRecent(subs[i], subs[j]) })
	return subs, nil
}

func (repo submissionRepository) QuerySubmissionsBySubmitter(ctx context.Context, studentID string, groupIDs []string, _ ...core.DBExecutor) ([]submission.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	groups := make(map[string]bool, len(groupIDs))
	for _, id := range groupIDs {
		groups[id] = true
	}
	var subs []submission.Submission
	for _, sub := range repo.db.submissions {
		if (sub.SubmitterID != "" && sub.SubmitterID == studentID) || groups[sub.SubmitterGroupID] {
			subs = append(subs, copySubmission(sub))
		}
	}
	sort.Slice(subs, func(i, j int) bool { return moreRecent(subs[i], subs[j]) })
	return subs, nil
}

func (repo submissionRepository) SetFinalGrade(ctx context.Context, id string, grade *float64, version int, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	sub, ok := repo.db.submissions[id]
	if !ok || sub.Version != version {
		return submission.ErrAggregationConflict
	}
	if grade != nil {
		g := *grade
		sub.FinalGrade = &g
	} else {
		sub.FinalGrade = nil
	}
	sub.Version++
	sub.UpdatedAt = time.Now().UTC()
	repo.db.submissions[id] = sub
	return nil
}

func (repo submissionRepository) CreateReview(ctx context.Context, rev submission.Review, _ ...core.DBExecutor) (submission.Review, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	rev.ID = uuid.New().String()
	for i := range rev.Grades {
		rev.Grades[i].ID = uuid.New().String()
		rev.Grades[i].ReviewID = rev.ID
	}
	repo.db.reviews[rev.ID] = copyReview(rev)
	return rev, nil
}

func (repo submissionRepository) UpdateReview(ctx context.Context, rev submission.Review, _ ...core.DBExecutor) (submission.Review, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.reviews[rev.ID]; !ok {
		return submission.Review{}, submission.ErrReviewNotFound
	}
	for i := range rev.Grades {
		if rev.Grades[i].ID == "" {
			rev.Grades[i].ID = uuid.New().String()
		}
		rev.Grades[i].ReviewID = rev.ID
	}
	repo.db.reviews[rev.ID] = copyReview(rev)
	return rev, nil
}

func (repo submissionRepository) DeleteReview(ctx context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.reviews[id]; !ok {
		return submission.ErrReviewNotFound
	}
	delete(repo.db.reviews, id)
	return nil
}

func (repo submissionRepository) GetReviewByID(ctx context.Context, id string, _ ...core.DBExecutor) (submission.Review, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rev, ok := repo.db.reviews[id]
	if !ok {
		return submission.Review{}, submission.ErrReviewNotFound
	}
	return copyReview(rev), nil
}

func (repo submissionRepository) QueryReviewsBySubmissionID(ctx context.Context, submissionID string, _ ...core.DBExecutor) ([]submission.Review, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var revs []submission.Review
	for _, rev := range repo.db.reviews {
		if rev.SubmissionID == submissionID {
			revs = append(revs, copyReview(rev))
		}
	}
	sort.Slice(revs, func(i, j int) bool {
		if !revs[i].CreatedAt.Equal(revs[j].CreatedAt) {
			return revs[i].CreatedAt.Before(revs[j].CreatedAt)
		}
		return revs[i].ID < revs[j].ID
	})
	return revs, nil
}

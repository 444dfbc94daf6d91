package submission_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/peergrade/core/assignment"
	"github.com/trezcool/peergrade/core/school"
	"github.com/trezcool/peergrade/core/submission"
	"github.com/trezcool/peergrade/core/user"
	testutil "github.com/trezcool/peergrade/tests"
)

type aggFixture struct {
	repos      *testutil.Repos
	agg        *submission.Aggregator
	instructor user.User
	peers      []user.User
	class      school.Class
	asg        assignment.Assignment
	rub        assignment.Rubric
	sub        submission.Submission
}

func newAggFixture(t *testing.T) *aggFixture {
	t.Helper()
	repos := testutil.NewRepos()

	instructor := testutil.CreateUser(t, repos.User, "teach", "teach@test.com", user.RoleInstructor)
	alice := testutil.CreateUser(t, repos.User, "alice", "alice@test.com", user.RoleStudent)
	bob := testutil.CreateUser(t, repos.User, "bob", "bob@test.com", user.RoleStudent)
	carol := testutil.CreateUser(t, repos.User, "carol", "carol@test.com", user.RoleStudent)
	dave := testutil.CreateUser(t, repos.User, "dave", "dave@test.com", user.RoleStudent)
	cls := testutil.CreateClass(t, repos.School, "Go 101", instructor.ID, alice.ID, bob.ID, carol.ID, dave.ID)

	due := time.Now().UTC().Add(24 * time.Hour)
	rub := testutil.SimpleRubric()
	asg := testutil.CreateAssignment(t, repos.Assignment, cls.ID, due, false, rub)
	sub := testutil.CreateSubmission(t, repos.Submission, asg.ID, dave.ID, "")

	return &aggFixture{
		repos:      repos,
		agg:        submission.NewAggregator(repos.DB, repos.Submission, repos.Assignment),
		instructor: instructor,
		peers:      []user.User{alice, bob, carol},
		class:      cls,
		asg:        asg,
		rub:        *rub,
		sub:        sub,
	}
}

func TestAggregator_ValidateReview(t *testing.T) {
	fix := newAggFixture(t)
	content, style := fix.rub.Criteria[0], fix.rub.Criteria[1]

	valid := submission.Review{
		ReviewGrade: 85, // 90*0.75 + 70*0.25
		Grades: []submission.CriterionGrade{
			{CriterionID: content.ID, Grade: 90},
			{CriterionID: style.ID, Grade: 70},
		},
	}

	tests := []struct {
		name    string
		mutate  func(rev *submission.Review)
		wantErr bool
	}{
		{"complete review with matching total", func(rev *submission.Review) {}, false},
		{"missing criterion grade", func(rev *submission.Review) {
			rev.Grades = rev.Grades[:1]
			rev.ReviewGrade = 90
		}, true},
		{"duplicate criterion grade", func(rev *submission.Review) {
			rev.Grades = append(rev.Grades, rev.Grades[0])
		}, true},
		{"unknown criterion", func(rev *submission.Review) {
			rev.Grades[1].CriterionID = "bogus"
		}, true},
		{"grade above max points", func(rev *submission.Review) {
			rev.Grades[0].Grade = content.MaxPoints + 1
		}, true},
		{"negative grade", func(rev *submission.Review) {
			rev.Grades[1].Grade = -1
		}, true},
		{"total does not match weighted sum", func(rev *submission.Review) {
			rev.ReviewGrade = 99
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rev := valid
			rev.Grades = append([]submission.CriterionGrade(nil), valid.Grades...)
			tt.mutate(&rev)

			err := fix.agg.ValidateReview(rev, fix.rub)
			if tt.wantErr {
				assert.Equal(t, submission.ErrInvalidGrade, errors.Cause(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestComputeReviewGrade(t *testing.T) {
	fix := newAggFixture(t)
	content, style := fix.rub.Criteria[0], fix.rub.Criteria[1]

	// 80*(3/4) + 90*(1/4) = 82.50
	total, err := submission.ComputeReviewGrade([]submission.CriterionGrade{
		{CriterionID: content.ID, Grade: 80},
		{CriterionID: style.ID, Grade: 90},
	}, fix.rub)
	assert.NoError(t, err)
	assert.Equal(t, 82.50, total)

	t.Run("zero total weight", func(t *testing.T) {
		rub := fix.rub
		rub.Criteria = []assignment.Criterion{}
		_, err := submission.ComputeReviewGrade(nil, rub)
		assert.Equal(t, submission.ErrInvalidGrade, errors.Cause(err))
	})
}

func TestAggregator_Aggregate(t *testing.T) {
	ctx := context.Background()

	t.Run("no reviews leaves the grade unset", func(t *testing.T) {
		fix := newAggFixture(t)
		grade, err := fix.agg.Aggregate(ctx, fix.sub.ID)
		assert.NoError(t, err)
		assert.Nil(t, grade)
	})

	t.Run("mean of counted peer reviews", func(t *testing.T) {
		fix := newAggFixture(t)
		now := time.Now().UTC()
		// totals: 80, 90, 100
		testutil.CreateReview(t, fix.repos.Submission, fix.rub, fix.sub, fix.peers[0], now, 80, 80)
		testutil.CreateReview(t, fix.repos.Submission, fix.rub, fix.sub, fix.peers[1], now, 90, 90)
		testutil.CreateReview(t, fix.repos.Submission, fix.rub, fix.sub, fix.peers[2], now, 100, 100)

		grade, err := fix.agg.Aggregate(ctx, fix.sub.ID)
		assert.NoError(t, err)
		if assert.NotNil(t, grade) {
			assert.Equal(t, 90.00, *grade)
		}
	})

	t.Run("instructor review is authoritative", func(t *testing.T) {
		fix := newAggFixture(t)
		now := time.Now().UTC()
		testutil.CreateReview(t, fix.repos.Submission, fix.rub, fix.sub, fix.peers[0], now, 10, 10)
		testutil.CreateReview(t, fix.repos.Submission, fix.rub, fix.sub, fix.peers[1], now, 20, 20)
		testutil.CreateReview(t, fix.repos.Submission, fix.rub, fix.sub, fix.instructor, now, 95, 95)

		grade, err := fix.agg.Aggregate(ctx, fix.sub.ID)
		assert.NoError(t, err)
		if assert.NotNil(t, grade) {
			assert.Equal(t, 95.00, *grade)
		}
	})

	t.Run("most recently updated instructor review wins", func(t *testing.T) {
		fix := newAggFixture(t)
		now := time.Now().UTC()
		testutil.CreateReview(t, fix.repos.Submission, fix.rub, fix.sub, fix.instructor, now.Add(-time.Hour), 60, 60)
		testutil.CreateReview(t, fix.repos.Submission, fix.rub, fix.sub, fix.instructor, now, 75, 75)

		grade, err := fix.agg.Aggregate(ctx, fix.sub.ID)
		assert.NoError(t, err)
		if assert.NotNil(t, grade) {
			assert.Equal(t, 75.00, *grade)
		}
	})

	t.Run("incomplete review is stored but not counted", func(t *testing.T) {
		fix := newAggFixture(t)
		now := time.Now().UTC()
		testutil.CreateReview(t, fix.repos.Submission, fix.rub, fix.sub, fix.peers[0], now, 80, 80)

		// missing the Style grade; persists but must not contribute
		incomplete := submission.Review{
			SubmissionID: fix.sub.ID,
			ReviewerID:   fix.peers[1].ID,
			ReviewerRole: fix.peers[1].Role,
			ReviewGrade:  100,
			Grades: []submission.CriterionGrade{
				{CriterionID: fix.rub.Criteria[0].ID, Grade: 100},
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		_, err := fix.repos.Submission.CreateReview(ctx, incomplete)
		assert.NoError(t, err)

		grade, err := fix.agg.Aggregate(ctx, fix.sub.ID)
		assert.NoError(t, err)
		if assert.NotNil(t, grade) {
			assert.Equal(t, 80.00, *grade)
		}

		revs, err := fix.repos.Submission.QueryReviewsBySubmissionID(ctx, fix.sub.ID)
		assert.NoError(t, err)
		assert.Len(t, revs, 2)
	})

	t.Run("only uncounted reviews leaves the grade unset", func(t *testing.T) {
		fix := newAggFixture(t)
		now := time.Now().UTC()
		bad := submission.Review{
			SubmissionID: fix.sub.ID,
			ReviewerID:   fix.peers[0].ID,
			ReviewerRole: fix.peers[0].Role,
			ReviewGrade:  500,
			Grades: []submission.CriterionGrade{
				{CriterionID: fix.rub.Criteria[0].ID, Grade: 500},
				{CriterionID: fix.rub.Criteria[1].ID, Grade: 500},
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		_, err := fix.repos.Submission.CreateReview(ctx, bad)
		assert.NoError(t, err)

		grade, err := fix.agg.Aggregate(ctx, fix.sub.ID)
		assert.NoError(t, err)
		assert.Nil(t, grade)
	})

	t.Run("idempotent when the review set is unchanged", func(t *testing.T) {
		fix := newAggFixture(t)
		now := time.Now().UTC()
		testutil.CreateReview(t, fix.repos.Submission, fix.rub, fix.sub, fix.peers[0], now, 80, 80)

		first, err := fix.agg.Aggregate(ctx, fix.sub.ID)
		assert.NoError(t, err)
		second, err := fix.agg.Aggregate(ctx, fix.sub.ID)
		assert.NoError(t, err)
		if assert.NotNil(t, first) && assert.NotNil(t, second) {
			assert.Equal(t, *first, *second)
		}
	})

	t.Run("stale version surfaces a conflict", func(t *testing.T) {
		fix := newAggFixture(t)
		now := time.Now().UTC()
		testutil.CreateReview(t, fix.repos.Submission, fix.rub, fix.sub, fix.peers[0], now, 80, 80)

		_, err := fix.agg.Aggregate(ctx, fix.sub.ID)
		assert.NoError(t, err)

		// write with the pre-aggregation version
		grade := 80.00
		err = fix.repos.Submission.SetFinalGrade(ctx, fix.sub.ID, &grade, fix.sub.Version)
		assert.Equal(t, submission.ErrAggregationConflict, errors.Cause(err))
	})
}

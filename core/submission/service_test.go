package submission_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/peergrade/core/assignment"
	"github.com/trezcool/peergrade/core/submission"
	"github.com/trezcool/peergrade/core/user"
	emailsvc "github.com/trezcool/peergrade/services/email"
	testutil "github.com/trezcool/peergrade/tests"
)

type svcFixture struct {
	repos      *testutil.Repos
	svc        *submission.Service
	instructor user.User
	alice      user.User
	bob        user.User
	asg        assignment.Assignment
	rub        assignment.Rubric
	due        time.Time
}

func newSvcFixture(t *testing.T, group bool) *svcFixture {
	t.Helper()
	repos := testutil.NewRepos()
	svc := submission.NewService(
		repos.DB, repos.Submission, repos.User, repos.School, repos.Assignment,
		emailsvc.NewConsoleServiceMock(),
	)

	instructor := testutil.CreateUser(t, repos.User, "teach", "teach@test.com", user.RoleInstructor)
	alice := testutil.CreateUser(t, repos.User, "alice", "alice@test.com", user.RoleStudent)
	bob := testutil.CreateUser(t, repos.User, "bob", "bob@test.com", user.RoleStudent)
	cls := testutil.CreateClass(t, repos.School, "Go 101", instructor.ID, alice.ID, bob.ID)

	due := time.Now().UTC().Add(24 * time.Hour)
	rub := testutil.SimpleRubric()
	asg := testutil.CreateAssignment(t, repos.Assignment, cls.ID, due, group, rub)
	if group {
		testutil.CreateGroup(t, repos.School, cls.ID, "Team A", alice.ID, bob.ID)
	}

	return &svcFixture{
		repos:      repos,
		svc:        svc,
		instructor: instructor,
		alice:      alice,
		bob:        bob,
		asg:        asg,
		rub:        *rub,
		due:        due,
	}
}

func (fix *svcFixture) newReview(reviewerID string, contentGrade, styleGrade float64) submission.NewReview {
	total := contentGrade*0.75 + styleGrade*0.25
	return submission.NewReview{
		ReviewerID:  reviewerID,
		ReviewGrade: total,
		Grades: []submission.NewCriterionGrade{
			{CriterionID: fix.rub.Criteria[0].ID, Grade: contentGrade},
			{CriterionID: fix.rub.Criteria[1].ID, Grade: styleGrade},
		},
	}
}

func TestService_CreateSubmission(t *testing.T) {
	ctx := context.Background()

	t.Run("on-time individual submission", func(t *testing.T) {
		fix := newSvcFixture(t, false)
		sub, err := fix.svc.CreateSubmission(ctx, submission.NewSubmission{
			StudentID:    fix.alice.ID,
			AssignmentID: fix.asg.ID,
			FilePath:     "uploads/essay.pdf",
		})
		assert.NoError(t, err)
		assert.Equal(t, fix.alice.ID, sub.SubmitterID)
		assert.Empty(t, sub.SubmitterGroupID)
		assert.Equal(t, assignment.OnTime, sub.Timeliness)
		assert.Nil(t, sub.FinalGrade)
	})

	t.Run("late submission is recorded, not rejected", func(t *testing.T) {
		fix := newSvcFixture(t, false)
		pastDue := testutil.CreateAssignment(t, fix.repos.Assignment, fix.asg.ClassID, time.Now().UTC().Add(-time.Hour), false, nil)

		sub, err := fix.svc.CreateSubmission(ctx, submission.NewSubmission{
			StudentID:    fix.alice.ID,
			AssignmentID: pastDue.ID,
			FilePath:     "uploads/late.pdf",
		})
		assert.NoError(t, err)
		assert.Equal(t, assignment.Late, sub.Timeliness)
	})

	t.Run("extension makes a late attempt on time", func(t *testing.T) {
		fix := newSvcFixture(t, false)
		pastDue := testutil.CreateAssignment(t, fix.repos.Assignment, fix.asg.ClassID, time.Now().UTC().Add(-time.Hour), false, nil)
		testutil.GrantExtension(t, fix.repos.Assignment, pastDue.ID, fix.alice.ID, time.Now().UTC().Add(time.Hour))

		sub, err := fix.svc.CreateSubmission(ctx, submission.NewSubmission{
			StudentID:    fix.alice.ID,
			AssignmentID: pastDue.ID,
			FilePath:     "uploads/extended.pdf",
		})
		assert.NoError(t, err)
		assert.Equal(t, assignment.OnTime, sub.Timeliness)
	})

	t.Run("group submission is owned by the group", func(t *testing.T) {
		fix := newSvcFixture(t, true)
		sub, err := fix.svc.CreateSubmission(ctx, submission.NewSubmission{
			StudentID:    fix.alice.ID,
			AssignmentID: fix.asg.ID,
			FilePath:     "uploads/team.pdf",
		})
		assert.NoError(t, err)
		assert.True(t, sub.IsGroup())
		assert.Empty(t, sub.SubmitterID)

		// both members see it in their history
		for _, usr := range []user.User{fix.alice, fix.bob} {
			subs, err := fix.svc.QueryForStudent(ctx, usr.ID)
			assert.NoError(t, err)
			assert.Len(t, subs, 1)
		}
	})

	t.Run("failed resolution creates no history entry", func(t *testing.T) {
		fix := newSvcFixture(t, false)
		outsider := testutil.CreateUser(t, fix.repos.User, "carol", "carol@test.com", user.RoleStudent)

		_, err := fix.svc.CreateSubmission(ctx, submission.NewSubmission{
			StudentID:    outsider.ID,
			AssignmentID: fix.asg.ID,
			FilePath:     "uploads/nope.pdf",
		})
		assert.Equal(t, submission.ErrInvalidSubmitter, errors.Cause(err))

		subs, err := fix.svc.QueryForAssignment(ctx, fix.asg.ID)
		assert.NoError(t, err)
		assert.Empty(t, subs)
	})
}

func TestService_Latest(t *testing.T) {
	ctx := context.Background()
	fix := newSvcFixture(t, false)

	_, err := fix.svc.Latest(ctx, fix.asg.ID, fix.alice.ID)
	assert.Equal(t, submission.ErrNotFound, errors.Cause(err))

	testutil.CreateSubmission(t, fix.repos.Submission, fix.asg.ID, fix.alice.ID, "")
	time.Sleep(5 * time.Millisecond) // distinct created_at
	second := testutil.CreateSubmission(t, fix.repos.Submission, fix.asg.ID, fix.alice.ID, "")

	got, err := fix.svc.Latest(ctx, fix.asg.ID, fix.alice.ID)
	assert.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	// another student's submissions do not shadow alice's
	time.Sleep(5 * time.Millisecond)
	testutil.CreateSubmission(t, fix.repos.Submission, fix.asg.ID, fix.bob.ID, "")

	got, err = fix.svc.Latest(ctx, fix.asg.ID, fix.alice.ID)
	assert.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
}

func TestService_Status(t *testing.T) {
	ctx := context.Background()
	fix := newSvcFixture(t, false)

	t.Run("not submitted before the due date", func(t *testing.T) {
		status, err := fix.svc.Status(ctx, fix.asg.ID, fix.alice.ID)
		assert.NoError(t, err)
		assert.Equal(t, submission.StatusNotSubmitted, status)
	})

	t.Run("missing after the due date", func(t *testing.T) {
		pastDue := testutil.CreateAssignment(t, fix.repos.Assignment, fix.asg.ClassID, time.Now().UTC().Add(-time.Hour), false, nil)
		status, err := fix.svc.Status(ctx, pastDue.ID, fix.alice.ID)
		assert.NoError(t, err)
		assert.Equal(t, submission.StatusMissing, status)
	})

	t.Run("submitted once any history entry exists", func(t *testing.T) {
		testutil.CreateSubmission(t, fix.repos.Submission, fix.asg.ID, fix.alice.ID, "")
		status, err := fix.svc.Status(ctx, fix.asg.ID, fix.alice.ID)
		assert.NoError(t, err)
		assert.Equal(t, submission.StatusSubmitted, status)
	})
}

func TestService_CreateReview(t *testing.T) {
	ctx := context.Background()

	t.Run("peer review recomputes the final grade", func(t *testing.T) {
		fix := newSvcFixture(t, false)
		sub := testutil.CreateSubmission(t, fix.repos.Submission, fix.asg.ID, fix.alice.ID, "")

		nr := fix.newReview(fix.bob.ID, 80, 80)
		nr.SubmissionID = sub.ID
		rev, err := fix.svc.CreateReview(ctx, nr)
		assert.NoError(t, err)
		assert.Equal(t, user.RoleStudent, rev.ReviewerRole)

		got, err := fix.svc.GetByID(ctx, sub.ID)
		assert.NoError(t, err)
		if assert.NotNil(t, got.FinalGrade) {
			assert.Equal(t, 80.00, *got.FinalGrade)
		}
	})

	t.Run("invalid review is rejected before any write", func(t *testing.T) {
		fix := newSvcFixture(t, false)
		sub := testutil.CreateSubmission(t, fix.repos.Submission, fix.asg.ID, fix.alice.ID, "")

		nr := fix.newReview(fix.bob.ID, 80, 80)
		nr.SubmissionID = sub.ID
		nr.ReviewGrade = 99 // does not match the weighted sum

		_, err := fix.svc.CreateReview(ctx, nr)
		assert.Equal(t, submission.ErrInvalidGrade, errors.Cause(err))

		revs, err := fix.svc.QueryReviews(ctx, sub.ID)
		assert.NoError(t, err)
		assert.Empty(t, revs)

		got, err := fix.svc.GetByID(ctx, sub.ID)
		assert.NoError(t, err)
		assert.Nil(t, got.FinalGrade)
	})

	t.Run("instructor review overrides peers and notifies the submitter", func(t *testing.T) {
		fix := newSvcFixture(t, false)
		sub := testutil.CreateSubmission(t, fix.repos.Submission, fix.asg.ID, fix.alice.ID, "")

		sent := len(emailsvc.SentMessages)

		nr := fix.newReview(fix.bob.ID, 60, 60)
		nr.SubmissionID = sub.ID
		_, err := fix.svc.CreateReview(ctx, nr)
		assert.NoError(t, err)

		nr = fix.newReview(fix.instructor.ID, 95, 95)
		nr.SubmissionID = sub.ID
		_, err = fix.svc.CreateReview(ctx, nr)
		assert.NoError(t, err)

		got, err := fix.svc.GetByID(ctx, sub.ID)
		assert.NoError(t, err)
		if assert.NotNil(t, got.FinalGrade) {
			assert.Equal(t, 95.00, *got.FinalGrade)
		}
		if assert.Greater(t, len(emailsvc.SentMessages), sent) {
			msg := emailsvc.SentMessages[len(emailsvc.SentMessages)-1]
			assert.Equal(t, fix.alice.Email, msg.To[0].Address)
		}
	})
}

func TestService_UpdateReview(t *testing.T) {
	ctx := context.Background()
	fix := newSvcFixture(t, false)
	sub := testutil.CreateSubmission(t, fix.repos.Submission, fix.asg.ID, fix.alice.ID, "")

	nr := fix.newReview(fix.bob.ID, 80, 80)
	nr.SubmissionID = sub.ID
	rev, err := fix.svc.CreateReview(ctx, nr)
	assert.NoError(t, err)

	_, err = fix.svc.UpdateReview(ctx, rev.ID, submission.UpdateReview{
		ReviewGrade: 90,
		Grades: []submission.NewCriterionGrade{
			{CriterionID: fix.rub.Criteria[0].ID, Grade: 90},
			{CriterionID: fix.rub.Criteria[1].ID, Grade: 90},
		},
	})
	assert.NoError(t, err)

	got, err := fix.svc.GetByID(ctx, sub.ID)
	assert.NoError(t, err)
	if assert.NotNil(t, got.FinalGrade) {
		assert.Equal(t, 90.00, *got.FinalGrade)
	}

	// the full grade set is replaced, not patched
	updated, err := fix.svc.GetReview(ctx, rev.ID)
	assert.NoError(t, err)
	assert.Len(t, updated.Grades, 2)
}

func TestService_DeleteReview(t *testing.T) {
	ctx := context.Background()
	fix := newSvcFixture(t, false)
	sub := testutil.CreateSubmission(t, fix.repos.Submission, fix.asg.ID, fix.alice.ID, "")

	nr := fix.newReview(fix.bob.ID, 80, 80)
	nr.SubmissionID = sub.ID
	rev, err := fix.svc.CreateReview(ctx, nr)
	assert.NoError(t, err)

	assert.NoError(t, fix.svc.DeleteReview(ctx, rev.ID))

	got, err := fix.svc.GetByID(ctx, sub.ID)
	assert.NoError(t, err)
	assert.Nil(t, got.FinalGrade)

	_, err = fix.svc.GetReview(ctx, rev.ID)
	assert.Equal(t, submission.ErrReviewNotFound, errors.Cause(err))
}

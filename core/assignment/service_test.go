package assignment_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/peergrade/core/assignment"
	"github.com/trezcool/peergrade/core/user"
	emailsvc "github.com/trezcool/peergrade/services/email"
	testutil "github.com/trezcool/peergrade/tests"
)

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	repos := testutil.NewRepos()
	svc := assignment.NewService(repos.DB, repos.Assignment, repos.User, emailsvc.NewConsoleServiceMock())

	instructor := testutil.CreateUser(t, repos.User, "teach", "teach@test.com", user.RoleInstructor)
	cls := testutil.CreateClass(t, repos.School, "Go 101", instructor.ID)
	due := time.Now().UTC().Add(48 * time.Hour)

	t.Run("with rubric", func(t *testing.T) {
		asg, err := svc.Create(ctx, assignment.NewAssignment{
			ClassID: cls.ID,
			Title:   "Essay",
			DueDate: due,
			Rubric: &assignment.NewRubric{
				Title: "Essay rubric",
				Criteria: []assignment.NewCriterion{
					{Title: "Content", MaxPoints: 100, Weight: 3},
					{Title: "Style", MaxPoints: 100, Weight: 1},
				},
			},
		})
		assert.NoError(t, err)
		assert.NotEmpty(t, asg.RubricID)

		// the link must survive a round trip, not just the create response
		got, err := svc.GetByID(ctx, asg.ID)
		assert.NoError(t, err)
		assert.Equal(t, asg.RubricID, got.RubricID)

		rub, err := svc.Rubric(ctx, asg.ID)
		assert.NoError(t, err)
		assert.Equal(t, asg.RubricID, rub.ID)
		if assert.Len(t, rub.Criteria, 2) {
			assert.Equal(t, 0, rub.Criteria[0].Position)
			assert.Equal(t, 1, rub.Criteria[1].Position)
		}

		asgs, err := svc.QueryForClass(ctx, cls.ID)
		assert.NoError(t, err)
		if assert.Len(t, asgs, 1) {
			assert.Equal(t, asg.RubricID, asgs[0].RubricID)
		}
	})

	t.Run("without rubric", func(t *testing.T) {
		other := testutil.CreateClass(t, repos.School, "Go 201", instructor.ID)
		asg, err := svc.Create(ctx, assignment.NewAssignment{
			ClassID: other.ID,
			Title:   "Quiz",
			DueDate: due,
		})
		assert.NoError(t, err)
		assert.Empty(t, asg.RubricID)

		got, err := svc.GetByID(ctx, asg.ID)
		assert.NoError(t, err)
		assert.Empty(t, got.RubricID)

		_, err = svc.Rubric(ctx, asg.ID)
		assert.Equal(t, assignment.ErrRubricNotFound, errors.Cause(err))
	})
}

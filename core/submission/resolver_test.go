package submission_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/peergrade/core/submission"
	"github.com/trezcool/peergrade/core/user"
	testutil "github.com/trezcool/peergrade/tests"
)

func TestResolver_Resolve_individual(t *testing.T) {
	ctx := context.Background()
	repos := testutil.NewRepos()
	resolver := submission.NewResolver(repos.User, repos.School, repos.Assignment)

	instructor := testutil.CreateUser(t, repos.User, "teach", "teach@test.com", user.RoleInstructor)
	alice := testutil.CreateUser(t, repos.User, "alice", "alice@test.com", user.RoleStudent)
	outsider := testutil.CreateUser(t, repos.User, "carol", "carol@test.com", user.RoleStudent)
	cls := testutil.CreateClass(t, repos.School, "Go 101", instructor.ID, alice.ID)

	due := time.Now().UTC().Add(24 * time.Hour)
	asg := testutil.CreateAssignment(t, repos.Assignment, cls.ID, due, false, nil)

	t.Run("enrolled student resolves to themselves", func(t *testing.T) {
		ident, err := resolver.Resolve(ctx, alice.ID, asg.ID)
		assert.NoError(t, err)
		assert.Equal(t, submission.IdentityStudent, ident.Kind)
		assert.Equal(t, alice.ID, ident.StudentID)
	})

	t.Run("student not enrolled in the class", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, outsider.ID, asg.ID)
		assert.Equal(t, submission.ErrInvalidSubmitter, errors.Cause(err))
	})

	t.Run("instructor cannot submit", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, instructor.ID, asg.ID)
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))
	})

	t.Run("unknown assignment", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, alice.ID, "6e0ef6ca-0000-0000-0000-000000000000")
		assert.Error(t, err)
	})
}

func TestResolver_Resolve_group(t *testing.T) {
	ctx := context.Background()
	repos := testutil.NewRepos()
	resolver := submission.NewResolver(repos.User, repos.School, repos.Assignment)

	instructor := testutil.CreateUser(t, repos.User, "teach", "teach@test.com", user.RoleInstructor)
	alice := testutil.CreateUser(t, repos.User, "alice", "alice@test.com", user.RoleStudent)
	bob := testutil.CreateUser(t, repos.User, "bob", "bob@test.com", user.RoleStudent)
	carol := testutil.CreateUser(t, repos.User, "carol", "carol@test.com", user.RoleStudent)
	dave := testutil.CreateUser(t, repos.User, "dave", "dave@test.com", user.RoleStudent)
	cls := testutil.CreateClass(t, repos.School, "Go 101", instructor.ID, alice.ID, bob.ID, carol.ID, dave.ID)

	due := time.Now().UTC().Add(24 * time.Hour)
	asg := testutil.CreateAssignment(t, repos.Assignment, cls.ID, due, true, nil)

	grp := testutil.CreateGroup(t, repos.School, cls.ID, "Team A", alice.ID, bob.ID)
	grpB := testutil.CreateGroup(t, repos.School, cls.ID, "Team B", dave.ID)

	t.Run("member resolves to their group", func(t *testing.T) {
		ident, err := resolver.Resolve(ctx, alice.ID, asg.ID)
		assert.NoError(t, err)
		assert.Equal(t, submission.IdentityGroup, ident.Kind)
		assert.Equal(t, grp.ID, ident.GroupID)
		assert.ElementsMatch(t, []string{alice.ID, bob.ID}, ident.MemberIDs)
	})

	t.Run("student in no group for this class", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, carol.ID, asg.ID)
		assert.Equal(t, submission.ErrInvalidSubmitter, errors.Cause(err))
	})

	t.Run("membership in another class does not leak", func(t *testing.T) {
		otherCls := testutil.CreateClass(t, repos.School, "Go 201", instructor.ID, carol.ID)
		testutil.CreateGroup(t, repos.School, otherCls.ID, "Other team", carol.ID)

		_, err := resolver.Resolve(ctx, carol.ID, asg.ID)
		assert.Equal(t, submission.ErrInvalidSubmitter, errors.Cause(err))
	})

	t.Run("student in more than one group for the class", func(t *testing.T) {
		// bypass the service invariant to model a corrupted store
		assert.NoError(t, repos.School.AddGroupMember(ctx, grpB.ID, bob.ID))

		_, err := resolver.Resolve(ctx, bob.ID, asg.ID)
		assert.Equal(t, submission.ErrInvalidSubmitter, errors.Cause(err))
	})

	t.Run("membership changes take effect on the next attempt", func(t *testing.T) {
		ident, err := resolver.Resolve(ctx, dave.ID, asg.ID)
		assert.NoError(t, err)
		assert.Equal(t, grpB.ID, ident.GroupID)
	})
}

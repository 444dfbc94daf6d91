package submission

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/peergrade/core/assignment"
	"github.com/trezcool/peergrade/core/school"
	"github.com/trezcool/peergrade/core/user"
)

// Resolver determines the authoritative submitting identity for a student on
// an assignment and validates that the identity is entitled to submit.
// Read-only; it must be re-run on every submission attempt since group
// membership can change between attempts.
type Resolver struct {
	usrRepo    user.Repository
	schoolRepo school.Repository
	asgRepo    assignment.Repository
}

func NewResolver(usrRepo user.Repository, schoolRepo school.Repository, asgRepo assignment.Repository) *Resolver {
	return &Resolver{usrRepo: usrRepo, schoolRepo: schoolRepo, asgRepo: asgRepo}
}

func (r *Resolver) Resolve(ctx context.Context, studentID, assignmentID string) (Identity, error) {
	asg, err := r.asgRepo.GetAssignmentByID(ctx, assignmentID)
	if err != nil {
		return Identity{}, err
	}
	usr, err := r.usrRepo.GetUserByID(ctx, studentID)
	if err != nil {
		return Identity{}, err
	}
	if !usr.IsStudent() {
		return Identity{}, user.ErrNotFound
	}

	if !asg.IsGroup {
		enrolled, err := r.schoolRepo.IsEnrolled(ctx, asg.ClassID, studentID)
		if err != nil {
			return Identity{}, err
		}
		if !enrolled {
			return Identity{}, errors.Wrap(ErrInvalidSubmitter, "student not in class")
		}
		return Identity{Kind: IdentityStudent, StudentID: studentID}, nil
	}

	groups, err := r.schoolRepo.QueryGroupsForUser(ctx, studentID)
	if err != nil {
		return Identity{}, err
	}
	var grp *school.Group
	for i, g := range groups {
		if g.ClassID != asg.ClassID {
			continue
		}
		if grp != nil {
			return Identity{}, errors.Wrap(ErrInvalidSubmitter, "student in more than one group for this class")
		}
		grp = &groups[i]
	}
	if grp == nil {
		return Identity{}, errors.Wrap(ErrInvalidSubmitter, "student not in a group for this class")
	}
	members, err := r.schoolRepo.QueryGroupMemberIDs(ctx, grp.ID)
	if err != nil {
		return Identity{}, err
	}
	if len(members) == 0 {
		return Identity{}, errors.Wrap(ErrInvalidSubmitter, "group empty")
	}
	return Identity{Kind: IdentityGroup, StudentID: studentID, GroupID: grp.ID, MemberIDs: members}, nil
}

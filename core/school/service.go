package school

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/peergrade/core"
)

var (
	// errors
	ErrClassNotFound = errors.New("class not found")
	ErrGroupNotFound = errors.New("group not found")

	// ErrAmbiguousGroup reports a membership-invariant violation: a student
	// may belong to at most one group per class.
	ErrAmbiguousGroup = errors.New("student belongs to more than one group in this class")
)

type (
	Repository interface {
		CreateClass(ctx context.Context, cls Class, exec ...core.DBExecutor) (Class, error)
		GetClassByID(ctx context.Context, id string, exec ...core.DBExecutor) (Class, error)
		QueryClassesForUser(ctx context.Context, userID string, exec ...core.DBExecutor) ([]Class, error)
		EnrollStudent(ctx context.Context, classID, studentID string, exec ...core.DBExecutor) error
		IsEnrolled(ctx context.Context, classID, studentID string, exec ...core.DBExecutor) (bool, error)

		CreateGroup(ctx context.Context, grp Group, exec ...core.DBExecutor) (Group, error)
		GetGroupByID(ctx context.Context, id string, exec ...core.DBExecutor) (Group, error)
		AddGroupMember(ctx context.Context, groupID, studentID string, exec ...core.DBExecutor) error
		QueryGroupsForUser(ctx context.Context, userID string, exec ...core.DBExecutor) ([]Group, error)
		QueryGroupMemberIDs(ctx context.Context, groupID string, exec ...core.DBExecutor) ([]string, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) CreateClass(ctx context.Context, nc NewClass) (Class, error) {
	if err := nc.Validate(); err != nil {
		return Class{}, err
	}
	now := time.Now().UTC()
	return svc.repo.CreateClass(ctx, Class{
		Name:         nc.Name,
		InstructorID: nc.InstructorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

func (svc *Service) GetClass(ctx context.Context, id string) (Class, error) {
	return svc.repo.GetClassByID(ctx, id)
}

// QueryClassesForUser returns the classes a user is enrolled in (students) or
// instructs (instructors).
func (svc *Service) QueryClassesForUser(ctx context.Context, userID string) ([]Class, error) {
	return svc.repo.QueryClassesForUser(ctx, userID)
}

func (svc *Service) QueryGroupsForUser(ctx context.Context, userID string) ([]Group, error) {
	return svc.repo.QueryGroupsForUser(ctx, userID)
}

func (svc *Service) CreateGroup(ctx context.Context, ng NewGroup) (Group, error) {
	if err := ng.Validate(); err != nil {
		return Group{}, err
	}
	if _, err := svc.repo.GetClassByID(ctx, ng.ClassID); err != nil {
		return Group{}, err
	}
	now := time.Now().UTC()
	return svc.repo.CreateGroup(ctx, Group{
		ClassID:   ng.ClassID,
		Name:      ng.Name,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *Service) GetGroup(ctx context.Context, id string) (Group, error) {
	return svc.repo.GetGroupByID(ctx, id)
}

func (svc *Service) Enroll(ctx context.Context, classID, studentID string) error {
	if _, err := svc.repo.GetClassByID(ctx, classID); err != nil {
		return err
	}
	return svc.repo.EnrollStudent(ctx, classID, studentID)
}

// AddGroupMember enforces the one-group-per-class membership invariant before
// delegating to the store.
func (svc *Service) AddGroupMember(ctx context.Context, groupID, studentID string) error {
	grp, err := svc.repo.GetGroupByID(ctx, groupID)
	if err != nil {
		return err
	}
	existing, err := svc.repo.QueryGroupsForUser(ctx, studentID)
	if err != nil {
		return err
	}
	for _, g := range existing {
		if g.ClassID == grp.ClassID && g.ID != grp.ID {
			return core.NewValidationError(ErrAmbiguousGroup,
				core.FieldError{Field: "student_id", Error: ErrAmbiguousGroup.Error()})
		}
	}
	return svc.repo.AddGroupMember(ctx, groupID, studentID)
}

// GroupForClass resolves the single group a student belongs to in the given
// class. ErrGroupNotFound when none; ErrAmbiguousGroup when the invariant is
// violated in the store.
func (svc *Service) GroupForClass(ctx context.Context, studentID, classID string) (Group, error) {
	groups, err := svc.repo.QueryGroupsForUser(ctx, studentID)
	if err != nil {
		return Group{}, err
	}
	var found *Group
	for i, g := range groups {
		if g.ClassID != classID {
			continue
		}
		if found != nil {
			return Group{}, ErrAmbiguousGroup
		}
		found = &groups[i]
	}
	if found == nil {
		return Group{}, ErrGroupNotFound
	}
	return *found, nil
}

package inmem

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/peergrade/core"
	"github.com/trezcool/peergrade/core/school"
)

type schoolRepository struct {
	db *DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) *schoolRepository {
	return &schoolRepository{db: db}
}

func (repo schoolRepository) CreateClass(ctx context.Context, cls school.Class, _ ...core.DBExecutor) (school.Class, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	cls.ID = uuid.New().String()
	repo.db.classes[cls.ID] = cls
	return cls, nil
}

func (repo schoolRepository) GetClassByID(ctx context.Context, id string, _ ...core.DBExecutor) (school.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	cls, ok := repo.db.classes[id]
	if !ok {
		return school.Class{}, school.ErrClassNotFound
	}
	return cls, nil
}

func (repo schoolRepository) QueryClassesForUser(ctx context.Context, userID string, _ ...core.DBExecutor) ([]school.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	seen := make(map[string]bool)
	var classes []school.Class
	for _, enr := range repo.db.enrollments {
		if enr.userID == userID && !seen[enr.parentID] {
			seen[enr.parentID] = true
			classes = append(classes, repo.db.classes[enr.parentID])
		}
	}
	for _, cls := range repo.db.classes {
		if cls.InstructorID == userID && !seen[cls.ID] {
			seen[cls.ID] = true
			classes = append(classes, cls)
		}
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].ID < classes[j].ID })
	return classes, nil
}

func (repo schoolRepository) EnrollStudent(ctx context.Context, classID, studentID string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, enr := range repo.db.enrollments {
		if enr.parentID == classID && enr.userID == studentID {
			return nil // already enrolled
		}
	}
	repo.db.enrollments = append(repo.db.enrollments, membership{parentID: classID, userID: studentID})
	return nil
}

func (repo schoolRepository) IsEnrolled(ctx context.Context, classID, studentID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, enr := range repo.db.enrollments {
		if enr.parentID == classID && enr.userID == studentID {
			return true, nil
		}
	}
	return false, nil
}

func (repo schoolRepository) CreateGroup(ctx context.Context, grp school.Group, _ ...core.DBExecutor) (school.Group, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	grp.ID = uuid.New().String()
	repo.db.groups[grp.ID] = grp
	return grp, nil
}

func (repo schoolRepository) GetGroupByID(ctx context.Context, id string, _ ...core.DBExecutor) (school.Group, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	grp, ok := repo.db.groups[id]
	if !ok {
		return school.Group{}, school.ErrGroupNotFound
	}
	return grp, nil
}

func (repo schoolRepository) AddGroupMember(ctx context.Context, groupID, studentID string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.groups[groupID]; !ok {
		return school.ErrGroupNotFound
	}
	for _, mbr := range repo.db.members {
		if mbr.parentID == groupID && mbr.userID == studentID {
			return nil // already a member
		}
	}
	repo.db.members = append(repo.db.members, membership{parentID: groupID, userID: studentID})
	return nil
}

func (repo schoolRepository) QueryGroupsForUser(ctx context.Context, userID string, _ ...core.DBExecutor) ([]school.Group, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var groups []school.Group
	for _, mbr := range repo.db.members {
		if mbr.userID == userID {
			groups = append(groups, repo.db.groups[mbr.parentID])
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups, nil
}

func (repo schoolRepository) QueryGroupMemberIDs(ctx context.Context, groupID string, _ ...core.DBExecutor) ([]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var ids []string
	for _, mbr := range repo.db.members {
		if mbr.parentID == groupID {
			ids = append(ids, mbr.userID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

package inmem

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/peergrade/core"
	"github.com/trezcool/peergrade/core/assignment"
)

type assignmentRepository struct {
	db *DB
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *DB) *assignmentRepository {
	return &assignmentRepository{db: db}
}

func extensionKey(assignmentID, studentID string) string { return assignmentID + "/" + studentID }

func (repo assignmentRepository) CreateAssignment(ctx context.Context, asg assignment.Assignment, rub *assignment.Rubric, _ ...core.DBExecutor) (assignment.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	asg.ID = uuid.New().String()
	if rub != nil {
		rub.ID = uuid.New().String()
		rub.AssignmentID = asg.ID
		for i := range rub.Criteria {
			rub.Criteria[i].ID = uuid.New().String()
			rub.Criteria[i].RubricID = rub.ID
		}
		stored := *rub
		stored.Criteria = append([]assignment.Criterion(nil), rub.Criteria...)
		repo.db.rubrics[asg.ID] = stored
		asg.RubricID = rub.ID
	}
	repo.db.assignments[asg.ID] = asg
	return asg, nil
}

func (repo assignmentRepository) GetAssignmentByID(ctx context.Context, id string, _ ...core.DBExecutor) (assignment.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	asg, ok := repo.db.assignments[id]
	if !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	return asg, nil
}

func (repo assignmentRepository) QueryAssignmentsByClassID(ctx context.Context, classID string, _ ...core.DBExecutor) ([]assignment.Assignment, error) {
	return repo.QueryAssignmentsByClassIDs(ctx, []string{classID})
}

func (repo assignmentRepository) QueryAssignmentsByClassIDs(ctx context.Context, classIDs []string, _ ...core.DBExecutor) ([]assignment.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	wanted := make(map[string]bool, len(classIDs))
	for _, id := range classIDs {
		wanted[id] = true
	}
	var asgs []assignment.Assignment
	for _, asg := range repo.db.assignments {
		if wanted[asg.ClassID] {
			asgs = append(asgs, asg)
		}
	}
	sort.Slice(asgs, func(i, j int) bool {
		if !asgs[i].DueDate.Equal(asgs[j].DueDate) {
			return asgs[i].DueDate.Before(asgs[j].DueDate)
		}
		return asgs[i].ID < asgs[j].ID
	})
	return asgs, nil
}

func (repo assignmentRepository) GetRubricByAssignmentID(ctx context.Context, assignmentID string, _ ...core.DBExecutor) (assignment.Rubric, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rub, ok := repo.db.rubrics[assignmentID]
	if !ok {
		return assignment.Rubric{}, assignment.ErrRubricNotFound
	}
	rub.Criteria = append([]assignment.Criterion(nil), rub.Criteria...)
	return rub, nil
}

func (repo assignmentRepository) UpsertExtension(ctx context.Context, ext assignment.Extension, _ ...core.DBExecutor) (assignment.Extension, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	key := extensionKey(ext.AssignmentID, ext.StudentID)
	if existing, ok := repo.db.extensions[key]; ok {
		existing.NewDueDate = ext.NewDueDate
		existing.UpdatedAt = ext.UpdatedAt
		repo.db.extensions[key] = existing
		return existing, nil
	}
	ext.ID = uuid.New().String()
	repo.db.extensions[key] = ext
	return ext, nil
}

func (repo assignmentRepository) GetExtension(ctx context.Context, assignmentID, studentID string, _ ...core.DBExecutor) (assignment.Extension, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ext, ok := repo.db.extensions[extensionKey(assignmentID, studentID)]
	if !ok {
		return assignment.Extension{}, assignment.ErrExtensionNotFound
	}
	return ext, nil
}

func (repo assignmentRepository) QueryExtensionsByAssignmentID(ctx context.Context, assignmentID string, _ ...core.DBExecutor) ([]assignment.Extension, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var exts []assignment.Extension
	for _, ext := range repo.db.extensions {
		if ext.AssignmentID == assignmentID {
			exts = append(exts, ext)
		}
	}
	sort.Slice(exts, func(i, j int) bool { return exts[i].StudentID < exts[j].StudentID })
	return exts, nil
}

func (repo assignmentRepository) DeleteExtension(ctx context.Context, assignmentID, studentID string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	key := extensionKey(assignmentID, studentID)
	if _, ok := repo.db.extensions[key]; !ok {
		return assignment.ErrExtensionNotFound
	}
	delete(repo.db.extensions, key)
	return nil
}

package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/peergrade/core"
	"github.com/trezcool/peergrade/core/school"
)

type schoolRepository struct {
	exec core.DBExecutor
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(exec core.DBExecutor) *schoolRepository {
	return &schoolRepository{exec: exec}
}

func (repo schoolRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

type classRow struct {
	ID           string      `db:"id"`
	Name         string      `db:"name"`
	InstructorID null.String `db:"instructor_id"`
	CreatedAt    null.Time   `db:"created_at"`
	UpdatedAt    null.Time   `db:"updated_at"`
}

func (repo schoolRepository) fromClassRow(row classRow) school.Class {
	return school.Class{
		ID:           row.ID,
		Name:         row.Name,
		InstructorID: row.InstructorID.String,
		CreatedAt:    row.CreatedAt.Time,
		UpdatedAt:    row.UpdatedAt.Time,
	}
}

type groupRow struct {
	ID        string    `db:"id"`
	ClassID   string    `db:"class_id"`
	Name      string    `db:"name"`
	CreatedAt null.Time `db:"created_at"`
	UpdatedAt null.Time `db:"updated_at"`
}

func (repo schoolRepository) fromGroupRow(row groupRow) school.Group {
	return school.Group{
		ID:        row.ID,
		ClassID:   row.ClassID,
		Name:      row.Name,
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}
}

func (repo schoolRepository) CreateClass(ctx context.Context, cls school.Class, exec ...core.DBExecutor) (school.Class, error) {
	cls.ID = uuid.New().String()
	_, err := repo.getExec(exec).ExecContext(ctx, `
		INSERT INTO class (id, name, instructor_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		cls.ID, cls.Name, null.NewString(cls.InstructorID, cls.InstructorID != ""), cls.CreatedAt.UTC(), cls.UpdatedAt.UTC(),
	)
	if err != nil {
		return school.Class{}, errors.Wrap(err, "inserting class")
	}
	return cls, nil
}

func (repo schoolRepository) GetClassByID(ctx context.Context, id string, exec ...core.DBExecutor) (school.Class, error) {
	var row classRow
	err := repo.getExec(exec).GetContext(ctx, &row, `SELECT * FROM class WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return school.Class{}, school.ErrClassNotFound
		}
		return school.Class{}, errors.Wrap(err, "getting class by id")
	}
	return repo.fromClassRow(row), nil
}

func (repo schoolRepository) QueryClassesForUser(ctx context.Context, userID string, exec ...core.DBExecutor) ([]school.Class, error) {
	var rows []classRow
	err := repo.getExec(exec).SelectContext(ctx, &rows, `
		SELECT c.* FROM class c
		LEFT JOIN class_enrollment ce ON ce.class_id = c.id
		WHERE ce.student_id = $1 OR c.instructor_id = $1
		GROUP BY c.id
		ORDER BY c.created_at`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying classes for user")
	}
	classes := make([]school.Class, 0, len(rows))
	for _, row := range rows {
		classes = append(classes, repo.fromClassRow(row))
	}
	return classes, nil
}

func (repo schoolRepository) EnrollStudent(ctx context.Context, classID, studentID string, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx, `
		INSERT INTO class_enrollment (class_id, student_id)
		VALUES ($1, $2)
		ON CONFLICT (class_id, student_id) DO NOTHING`, classID, studentID)
	return errors.Wrap(err, "enrolling student")
}

func (repo schoolRepository) IsEnrolled(ctx context.Context, classID, studentID string, exec ...core.DBExecutor) (bool, error) {
	var enrolled bool
	err := repo.getExec(exec).QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM class_enrollment WHERE class_id = $1 AND student_id = $2)`,
		classID, studentID,
	).Scan(&enrolled)
	if err != nil {
		return false, errors.Wrap(err, "checking enrollment")
	}
	return enrolled, nil
}

func (repo schoolRepository) CreateGroup(ctx context.Context, grp school.Group, exec ...core.DBExecutor) (school.Group, error) {
	grp.ID = uuid.New().String()
	_, err := repo.getExec(exec).ExecContext(ctx, `
		INSERT INTO "group" (id, class_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		grp.ID, grp.ClassID, grp.Name, grp.CreatedAt.UTC(), grp.UpdatedAt.UTC(),
	)
	if err != nil {
		return school.Group{}, errors.Wrap(err, "inserting group")
	}
	return grp, nil
}

func (repo schoolRepository) GetGroupByID(ctx context.Context, id string, exec ...core.DBExecutor) (school.Group, error) {
	var row groupRow
	err := repo.getExec(exec).GetContext(ctx, &row, `SELECT * FROM "group" WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return school.Group{}, school.ErrGroupNotFound
		}
		return school.Group{}, errors.Wrap(err, "getting group by id")
	}
	return repo.fromGroupRow(row), nil
}

func (repo schoolRepository) AddGroupMember(ctx context.Context, groupID, studentID string, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx, `
		INSERT INTO group_member (group_id, student_id)
		VALUES ($1, $2)
		ON CONFLICT (group_id, student_id) DO NOTHING`, groupID, studentID)
	return errors.Wrap(err, "adding group member")
}

func (repo schoolRepository) QueryGroupsForUser(ctx context.Context, userID string, exec ...core.DBExecutor) ([]school.Group, error) {
	var rows []groupRow
	err := repo.getExec(exec).SelectContext(ctx, &rows, `
		SELECT g.* FROM "group" g
		JOIN group_member gm ON gm.group_id = g.id
		WHERE gm.student_id = $1
		ORDER BY g.created_at`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying groups for user")
	}
	groups := make([]school.Group, 0, len(rows))
	for _, row := range rows {
		groups = append(groups, repo.fromGroupRow(row))
	}
	return groups, nil
}

func (repo schoolRepository) QueryGroupMemberIDs(ctx context.Context, groupID string, exec ...core.DBExecutor) ([]string, error) {
	var ids []string
	err := repo.getExec(exec).SelectContext(ctx, &ids,
		`SELECT student_id FROM group_member WHERE group_id = $1 ORDER BY student_id`, groupID)
	if err != nil {
		return nil, errors.Wrap(err, "querying group members")
	}
	return ids, nil
}

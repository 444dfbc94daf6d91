package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/peergrade/core"
	"github.com/trezcool/peergrade/core/assignment"
)

type assignmentRepository struct {
	exec core.DBExecutor
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(exec core.DBExecutor) *assignmentRepository {
	return &assignmentRepository{exec: exec}
}

func (repo assignmentRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

type assignmentRow struct {
	ID          string      `db:"id"`
	ClassID     string      `db:"class_id"`
	Title       string      `db:"title"`
	Description null.String `db:"description"`
	DueDate     null.Time   `db:"due_date"`
	IsGroup     bool        `db:"is_group"`
	FilePath    null.String `db:"file_path"`
	CreatedAt   null.Time   `db:"created_at"`
	UpdatedAt   null.Time   `db:"updated_at"`
	RubricID    null.String `db:"rubric_id"` // joined from rubric
}

// assignmentCols joins the rubric id in so reads carry Assignment.RubricID.
const assignmentCols = `a.*, r.id AS rubric_id
	FROM assignment a
	LEFT JOIN rubric r ON r.assignment_id = a.id`

func (repo assignmentRepository) fromRow(row assignmentRow) assignment.Assignment {
	return assignment.Assignment{
		ID:          row.ID,
		ClassID:     row.ClassID,
		Title:       row.Title,
		Description: row.Description.String,
		DueDate:     row.DueDate.Time,
		IsGroup:     row.IsGroup,
		FilePath:    row.FilePath.String,
		RubricID:    row.RubricID.String,
		CreatedAt:   row.CreatedAt.Time,
		UpdatedAt:   row.UpdatedAt.Time,
	}
}

func (repo assignmentRepository) fromRows(rows []assignmentRow) []assignment.Assignment {
	asgs := make([]assignment.Assignment, 0, len(rows))
	for _, row := range rows {
		asgs = append(asgs, repo.fromRow(row))
	}
	return asgs
}

type extensionRow struct {
	ID           string    `db:"id"`
	AssignmentID string    `db:"assignment_id"`
	StudentID    string    `db:"student_id"`
	NewDueDate   null.Time `db:"new_due_date"`
	CreatedAt    null.Time `db:"created_at"`
	UpdatedAt    null.Time `db:"updated_at"`
}

func (repo assignmentRepository) fromExtensionRow(row extensionRow) assignment.Extension {
	return assignment.Extension{
		ID:           row.ID,
		AssignmentID: row.AssignmentID,
		StudentID:    row.StudentID,
		NewDueDate:   row.NewDueDate.Time,
		CreatedAt:    row.CreatedAt.Time,
		UpdatedAt:    row.UpdatedAt.Time,
	}
}

func (repo assignmentRepository) CreateAssignment(ctx context.Context, asg assignment.Assignment, rub *assignment.Rubric, exec ...core.DBExecutor) (assignment.Assignment, error) {
	asg.ID = uuid.New().String()
	_, err := repo.getExec(exec).ExecContext(ctx, `
		INSERT INTO assignment (id, class_id, title, description, due_date, is_group, file_path, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		asg.ID, asg.ClassID, asg.Title,
		null.NewString(asg.Description, asg.Description != ""),
		asg.DueDate.UTC(), asg.IsGroup,
		null.NewString(asg.FilePath, asg.FilePath != ""),
		asg.CreatedAt.UTC(), asg.UpdatedAt.UTC(),
	)
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "inserting assignment")
	}

	if rub != nil {
		rub.ID = uuid.New().String()
		rub.AssignmentID = asg.ID
		if _, err = repo.getExec(exec).ExecContext(ctx,
			`INSERT INTO rubric (id, assignment_id, title) VALUES ($1, $2, $3)`,
			rub.ID, rub.AssignmentID, rub.Title,
		); err != nil {
			return assignment.Assignment{}, errors.Wrap(err, "inserting rubric")
		}
		for i := range rub.Criteria {
			crit := &rub.Criteria[i]
			crit.ID = uuid.New().String()
			crit.RubricID = rub.ID
			if _, err = repo.getExec(exec).ExecContext(ctx, `
				INSERT INTO criterion (id, rubric_id, title, max_points, weight, position)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				crit.ID, crit.RubricID, crit.Title, crit.MaxPoints, crit.Weight, crit.Position,
			); err != nil {
				return assignment.Assignment{}, errors.Wrap(err, "inserting criterion")
			}
		}
		asg.RubricID = rub.ID
	}
	return asg, nil
}

func (repo assignmentRepository) GetAssignmentByID(ctx context.Context, id string, exec ...core.DBExecutor) (assignment.Assignment, error) {
	var row assignmentRow
	err := repo.getExec(exec).GetContext(ctx, &row, `SELECT `+assignmentCols+` WHERE a.id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return assignment.Assignment{}, assignment.ErrNotFound
		}
		return assignment.Assignment{}, errors.Wrap(err, "getting assignment by id")
	}
	return repo.fromRow(row), nil
}

func (repo assignmentRepository) QueryAssignmentsByClassID(ctx context.Context, classID string, exec ...core.DBExecutor) ([]assignment.Assignment, error) {
	var rows []assignmentRow
	err := repo.getExec(exec).SelectContext(ctx, &rows,
		`SELECT `+assignmentCols+` WHERE a.class_id = $1 ORDER BY a.due_date, a.id`, classID)
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments by class")
	}
	return repo.fromRows(rows), nil
}

func (repo assignmentRepository) QueryAssignmentsByClassIDs(ctx context.Context, classIDs []string, exec ...core.DBExecutor) ([]assignment.Assignment, error) {
	var rows []assignmentRow
	err := repo.getExec(exec).SelectContext(ctx, &rows,
		`SELECT `+assignmentCols+` WHERE a.class_id = ANY($1) ORDER BY a.due_date, a.id`, pq.Array(classIDs))
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments by classes")
	}
	return repo.fromRows(rows), nil
}

func (repo assignmentRepository) GetRubricByAssignmentID(ctx context.Context, assignmentID string, exec ...core.DBExecutor) (assignment.Rubric, error) {
	var rub struct {
		ID           string `db:"id"`
		AssignmentID string `db:"assignment_id"`
		Title        string `db:"title"`
	}
	err := repo.getExec(exec).GetContext(ctx, &rub, `SELECT * FROM rubric WHERE assignment_id = $1`, assignmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return assignment.Rubric{}, assignment.ErrRubricNotFound
		}
		return assignment.Rubric{}, errors.Wrap(err, "getting rubric")
	}

	var crits []assignment.Criterion
	err = repo.getExec(exec).SelectContext(ctx, &crits, `
		SELECT id, rubric_id AS rubricid, title, max_points AS maxpoints, weight, position
		FROM criterion WHERE rubric_id = $1 ORDER BY position, id`, rub.ID)
	if err != nil {
		return assignment.Rubric{}, errors.Wrap(err, "querying criteria")
	}
	return assignment.Rubric{ID: rub.ID, AssignmentID: rub.AssignmentID, Title: rub.Title, Criteria: crits}, nil
}

func (repo assignmentRepository) UpsertExtension(ctx context.Context, ext assignment.Extension, exec ...core.DBExecutor) (assignment.Extension, error) {
	ext.ID = uuid.New().String()
	// single-statement replace keeps the at-most-one-per-(assignment, student)
	// invariant under concurrent grants
	var row extensionRow
	err := repo.getExec(exec).GetContext(ctx, &row, `
		INSERT INTO deadline_extension (id, assignment_id, student_id, new_due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (assignment_id, student_id)
		DO UPDATE SET new_due_date = EXCLUDED.new_due_date, updated_at = EXCLUDED.updated_at
		RETURNING *`,
		ext.ID, ext.AssignmentID, ext.StudentID, ext.NewDueDate.UTC(), ext.CreatedAt.UTC(), ext.UpdatedAt.UTC(),
	)
	if err != nil {
		return assignment.Extension{}, errors.Wrap(err, "upserting deadline extension")
	}
	return repo.fromExtensionRow(row), nil
}

func (repo assignmentRepository) GetExtension(ctx context.Context, assignmentID, studentID string, exec ...core.DBExecutor) (assignment.Extension, error) {
	var row extensionRow
	err := repo.getExec(exec).GetContext(ctx, &row,
		`SELECT * FROM deadline_extension WHERE assignment_id = $1 AND student_id = $2`, assignmentID, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return assignment.Extension{}, assignment.ErrExtensionNotFound
		}
		return assignment.Extension{}, errors.Wrap(err, "getting deadline extension")
	}
	return repo.fromExtensionRow(row), nil
}

func (repo assignmentRepository) QueryExtensionsByAssignmentID(ctx context.Context, assignmentID string, exec ...core.DBExecutor) ([]assignment.Extension, error) {
	var rows []extensionRow
	err := repo.getExec(exec).SelectContext(ctx, &rows,
		`SELECT * FROM deadline_extension WHERE assignment_id = $1 ORDER BY student_id`, assignmentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying deadline extensions")
	}
	exts := make([]assignment.Extension, 0, len(rows))
	for _, row := range rows {
		exts = append(exts, repo.fromExtensionRow(row))
	}
	return exts, nil
}

func (repo assignmentRepository) DeleteExtension(ctx context.Context, assignmentID, studentID string, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx,
		`DELETE FROM deadline_extension WHERE assignment_id = $1 AND student_id = $2`, assignmentID, studentID)
	if err != nil {
		return errors.Wrap(err, "deleting deadline extension")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return assignment.ErrExtensionNotFound
	}
	return nil
}

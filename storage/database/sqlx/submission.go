package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/peergrade/core"
	"github.com/trezcool/peergrade/core/submission"
)

type submissionRepository struct {
	exec core.DBExecutor
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(exec core.DBExecutor) *submissionRepository {
	return &submissionRepository{exec: exec}
}

func (repo submissionRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

type submissionRow struct {
	ID               string       `db:"id"`
	AssignmentID     string       `db:"assignment_id"`
	SubmitterID      null.String  `db:"submitter_id"`
	SubmitterGroupID null.String  `db:"submitter_group_id"`
	FilePath         string       `db:"file_path"`
	FinalGrade       null.Float64 `db:"final_grade"`
	Version          int          `db:"version"`
	CreatedAt        null.Time    `db:"created_at"`
	UpdatedAt        null.Time    `db:"updated_at"`
}

func (repo submissionRepository) fromRow(row submissionRow) submission.Submission {
	sub := submission.Submission{
		ID:               row.ID,
		AssignmentID:     row.AssignmentID,
		SubmitterID:      row.SubmitterID.String,
		SubmitterGroupID: row.SubmitterGroupID.String,
		FilePath:         row.FilePath,
		Version:          row.Version,
		CreatedAt:        row.CreatedAt.Time,
		UpdatedAt:        row.UpdatedAt.Time,
	}
	if row.FinalGrade.Valid {
		grade := row.FinalGrade.Float64
		sub.FinalGrade = &grade
	}
	return sub
}

func (repo submissionRepository) fromRows(rows []submissionRow) []submission.Submission {
	subs := make([]submission.Submission, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, repo.fromRow(row))
	}
	return subs
}

type reviewRow struct {
	ID           string    `db:"id"`
	SubmissionID string    `db:"submission_id"`
	ReviewerID   string    `db:"reviewer_id"`
	ReviewerRole string    `db:"reviewer_role"`
	ReviewGrade  float64   `db:"review_grade"`
	CreatedAt    null.Time `db:"created_at"`
	UpdatedAt    null.Time `db:"updated_at"`
}

func (repo submissionRepository) fromReviewRow(row reviewRow) submission.Review {
	return submission.Review{
		ID:           row.ID,
		SubmissionID: row.SubmissionID,
		ReviewerID:   row.ReviewerID,
		ReviewerRole: row.ReviewerRole,
		ReviewGrade:  row.ReviewGrade,
		CreatedAt:    row.CreatedAt.Time,
		UpdatedAt:    row.UpdatedAt.Time,
	}
}

type criterionGradeRow struct {
	ID          string      `db:"id"`
	ReviewID    string      `db:"review_id"`
	CriterionID string      `db:"criterion_id"`
	Grade       float64     `db:"grade"`
	Comment     null.String `db:"comment"`
}

func (repo submissionRepository) CreateSubmission(ctx context.Context, sub submission.Submission, exec ...core.DBExecutor) (submission.Submission, error) {
	sub.ID = uuid.New().String()
	_, err := repo.getExec(exec).ExecContext(ctx, `
		INSERT INTO submission (id, assignment_id, submitter_id, submitter_group_id, file_path, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7)`,
		sub.ID, sub.AssignmentID,
		null.NewString(sub.SubmitterID, sub.SubmitterID != ""),
		null.NewString(sub.SubmitterGroupID, sub.SubmitterGroupID != ""),
		sub.FilePath, sub.CreatedAt.UTC(), sub.UpdatedAt.UTC(),
	)
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return sub, nil
}

func (repo submissionRepository) GetSubmissionByID(ctx context.Context, id string, exec ...core.DBExecutor) (submission.Submission, error) {
	var row submissionRow
	err := repo.getExec(exec).GetContext(ctx, &row, `SELECT * FROM submission WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return submission.Submission{}, submission.ErrNotFound
		}
		return submission.Submission{}, errors.Wrap(err, "getting submission by id")
	}
	return repo.fromRow(row), nil
}

func (repo submissionRepository) QuerySubmissionsByAssignmentID(ctx context.Context, assignmentID string, exec ...core.DBExecutor) ([]submission.Submission, error) {
	var rows []submissionRow
	err := repo.getExec(exec).SelectContext(ctx, &rows, `
		SELECT * FROM submission WHERE assignment_id = $1
		ORDER BY created_at DESC, id DESC`, assignmentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions by assignment")
	}
	return repo.fromRows(rows), nil
}

func (repo submissionRepository) QuerySubmissionsBySubmitter(ctx context.Context, studentID string, groupIDs []string, exec ...core.DBExecutor) ([]submission.Submission, error) {
	var rows []submissionRow
	err := repo.getExec(exec).SelectContext(ctx, &rows, `
		SELECT * FROM submission
		WHERE submitter_id = $1 OR submitter_group_id = ANY($2)
		ORDER BY created_at DESC, id DESC`, studentID, pq.Array(groupIDs))
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions by submitter")
	}
	return repo.fromRows(rows), nil
}

func (repo submissionRepository) SetFinalGrade(ctx context.Context, id string, grade *float64, version int, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, `
		UPDATE submission
		SET final_grade = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3`,
		null.Float64FromPtr(grade), id, version,
	)
	if err != nil {
		return errors.Wrap(err, "setting final grade")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "setting final grade")
	}
	if n == 0 {
		// either the submission vanished or a concurrent aggregation won;
		// both are resolved by reloading and retrying
		return submission.ErrAggregationConflict
	}
	return nil
}

func (repo submissionRepository) CreateReview(ctx context.Context, rev submission.Review, exec ...core.DBExecutor) (submission.Review, error) {
	rev.ID = uuid.New().String()
	_, err := repo.getExec(exec).ExecContext(ctx, `
		INSERT INTO review (id, submission_id, reviewer_id, reviewer_role, review_grade, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rev.ID, rev.SubmissionID, rev.ReviewerID, rev.ReviewerRole, rev.ReviewGrade,
		rev.CreatedAt.UTC(), rev.UpdatedAt.UTC(),
	)
	if err != nil {
		return submission.Review{}, errors.Wrap(err, "inserting review")
	}
	if err = repo.insertGrades(ctx, &rev, exec); err != nil {
		return submission.Review{}, err
	}
	return rev, nil
}

func (repo submissionRepository) UpdateReview(ctx context.Context, rev submission.Review, exec ...core.DBExecutor) (submission.Review, error) {
	res, err := repo.getExec(exec).ExecContext(ctx, `
		UPDATE review SET review_grade = $1, updated_at = $2 WHERE id = $3`,
		rev.ReviewGrade, rev.UpdatedAt.UTC(), rev.ID,
	)
	if err != nil {
		return submission.Review{}, errors.Wrap(err, "updating review")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return submission.Review{}, submission.ErrReviewNotFound
	}
	// grades are replaced wholesale
	if _, err = repo.getExec(exec).ExecContext(ctx, `DELETE FROM criterion_grade WHERE review_id = $1`, rev.ID); err != nil {
		return submission.Review{}, errors.Wrap(err, "clearing criterion grades")
	}
	if err = repo.insertGrades(ctx, &rev, exec); err != nil {
		return submission.Review{}, err
	}
	return rev, nil
}

func (repo submissionRepository) insertGrades(ctx context.Context, rev *submission.Review, exec []core.DBExecutor) error {
	for i := range rev.Grades {
		cg := &rev.Grades[i]
		cg.ID = uuid.New().String()
		cg.ReviewID = rev.ID
		if _, err := repo.getExec(exec).ExecContext(ctx, `
			INSERT INTO criterion_grade (id, review_id, criterion_id, grade, comment)
			VALUES ($1, $2, $3, $4, $5)`,
			cg.ID, cg.ReviewID, cg.CriterionID, cg.Grade,
			null.NewString(cg.Comment, cg.Comment != ""),
		); err != nil {
			return errors.Wrap(err, "inserting criterion grade")
		}
	}
	return nil
}

func (repo submissionRepository) DeleteReview(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, `DELETE FROM review WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting review")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return submission.ErrReviewNotFound
	}
	return nil
}

func (repo submissionRepository) GetReviewByID(ctx context.Context, id string, exec ...core.DBExecutor) (submission.Review, error) {
	var row reviewRow
	err := repo.getExec(exec).GetContext(ctx, &row, `SELECT * FROM review WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return submission.Review{}, submission.ErrReviewNotFound
		}
		return submission.Review{}, errors.Wrap(err, "getting review by id")
	}
	rev := repo.fromReviewRow(row)
	if rev.Grades, err = repo.queryGrades(ctx, rev.ID, exec); err != nil {
		return submission.Review{}, err
	}
	return rev, nil
}

func (repo submissionRepository) QueryReviewsBySubmissionID(ctx context.Context, submissionID string, exec ...core.DBExecutor) ([]submission.Review, error) {
	var rows []reviewRow
	err := repo.getExec(exec).SelectContext(ctx, &rows,
		`SELECT * FROM review WHERE submission_id = $1 ORDER BY created_at, id`, submissionID)
	if err != nil {
		return nil, errors.Wrap(err, "querying reviews by submission")
	}
	revs := make([]submission.Review, 0, len(rows))
	for _, row := range rows {
		rev := repo.fromReviewRow(row)
		if rev.Grades, err = repo.queryGrades(ctx, rev.ID, exec); err != nil {
			return nil, err
		}
		revs = append(revs, rev)
	}
	return revs, nil
}

func (repo submissionRepository) queryGrades(ctx context.Context, reviewID string, exec []core.DBExecutor) ([]submission.CriterionGrade, error) {
	var rows []criterionGradeRow
	err := repo.getExec(exec).SelectContext(ctx, &rows,
		`SELECT * FROM criterion_grade WHERE review_id = $1 ORDER BY criterion_id`, reviewID)
	if err != nil {
		return nil, errors.Wrap(err, "querying criterion grades")
	}
	grades := make([]submission.CriterionGrade, 0, len(rows))
	for _, row := range rows {
		grades = append(grades, submission.CriterionGrade{
			ID:          row.ID,
			ReviewID:    row.ReviewID,
			CriterionID: row.CriterionID,
			Grade:       row.Grade,
			Comment:     row.Comment.String,
		})
	}
	return grades, nil
}

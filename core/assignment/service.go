package assignment

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/peergrade/core"
	"github.com/trezcool/peergrade/core/user"
)

var (
	// errors
	ErrNotFound          = errors.New("assignment not found")
	ErrRubricNotFound    = errors.New("rubric not found")
	ErrExtensionNotFound = errors.New("deadline extension not found")
)

type (
	Repository interface {
		// CreateAssignment persists the assignment and its rubric (when
		// provided). The writes span several statements; the caller supplies
		// a transaction executor to make them atomic.
		CreateAssignment(ctx context.Context, asg Assignment, rub *Rubric, exec ...core.DBExecutor) (Assignment, error)
		GetAssignmentByID(ctx context.Context, id string, exec ...core.DBExecutor) (Assignment, error)
		QueryAssignmentsByClassID(ctx context.Context, classID string, exec ...core.DBExecutor) ([]Assignment, error)
		QueryAssignmentsByClassIDs(ctx context.Context, classIDs []string, exec ...core.DBExecutor) ([]Assignment, error)

		// GetRubricByAssignmentID returns the rubric with its criteria
		// ordered by position.
		GetRubricByAssignmentID(ctx context.Context, assignmentID string, exec ...core.DBExecutor) (Rubric, error)

		// UpsertExtension atomically replaces any existing extension for the
		// same (assignment, student) pair.
		UpsertExtension(ctx context.Context, ext Extension, exec ...core.DBExecutor) (Extension, error)
		GetExtension(ctx context.Context, assignmentID, studentID string, exec ...core.DBExecutor) (Extension, error)
		QueryExtensionsByAssignmentID(ctx context.Context, assignmentID string, exec ...core.DBExecutor) ([]Extension, error)
		DeleteExtension(ctx context.Context, assignmentID, studentID string, exec ...core.DBExecutor) error
	}

	Service struct {
		db      core.DB
		repo    Repository
		usrRepo user.Repository
		mailSvc core.EmailService
	}
)

func NewService(db core.DB, repo Repository, usrRepo user.Repository, mailSvc core.EmailService) *Service {
	return &Service{db: db, repo: repo, usrRepo: usrRepo, mailSvc: mailSvc}
}

func (svc *Service) Create(ctx context.Context, na NewAssignment) (Assignment, error) {
	if err := na.Validate(); err != nil {
		return Assignment{}, err
	}
	now := time.Now().UTC()
	asg := Assignment{
		ClassID:     na.ClassID,
		Title:       na.Title,
		Description: na.Description,
		DueDate:     na.DueDate.UTC(),
		IsGroup:     na.IsGroup,
		FilePath:    na.FilePath,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	var rub *Rubric
	if na.Rubric != nil {
		rub = &Rubric{Title: na.Rubric.Title}
		for i, nc := range na.Rubric.Criteria {
			rub.Criteria = append(rub.Criteria, Criterion{
				Title:     nc.Title,
				MaxPoints: nc.MaxPoints,
				Weight:    nc.Weight,
				Position:  i,
			})
		}
	}
	// assignment + rubric + criteria land together or not at all
	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return Assignment{}, errors.Wrap(err, "beginning assignment tx")
	}
	asg, err = svc.repo.CreateAssignment(ctx, asg, rub, tx)
	if err != nil {
		_ = tx.Rollback()
		return Assignment{}, err
	}
	if err = tx.Commit(); err != nil {
		return Assignment{}, errors.Wrap(err, "committing assignment tx")
	}
	return asg, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Assignment, error) {
	return svc.repo.GetAssignmentByID(ctx, id)
}

func (svc *Service) QueryForClass(ctx context.Context, classID string) ([]Assignment, error) {
	return svc.repo.QueryAssignmentsByClassID(ctx, classID)
}

// QueryForClasses returns all assignments across the given classes; used to
// list a user's assignments from their class memberships.
func (svc *Service) QueryForClasses(ctx context.Context, classIDs []string) ([]Assignment, error) {
	if len(classIDs) == 0 {
		return []Assignment{}, nil
	}
	return svc.repo.QueryAssignmentsByClassIDs(ctx, classIDs)
}

func (svc *Service) Rubric(ctx context.Context, assignmentID string) (Rubric, error) {
	return svc.repo.GetRubricByAssignmentID(ctx, assignmentID)
}

// GrantExtension grants (or replaces) the deadline extension for a student on
// an assignment and notifies the student.
func (svc *Service) GrantExtension(ctx context.Context, ne NewExtension) (Extension, error) {
	if err := ne.Validate(); err != nil {
		return Extension{}, err
	}
	asg, err := svc.repo.GetAssignmentByID(ctx, ne.AssignmentID)
	if err != nil {
		return Extension{}, err
	}
	usr, err := svc.usrRepo.GetUserByID(ctx, ne.StudentID)
	if err != nil {
		return Extension{}, err
	}
	now := time.Now().UTC()
	ext, err := svc.repo.UpsertExtension(ctx, Extension{
		AssignmentID: ne.AssignmentID,
		StudentID:    ne.StudentID,
		NewDueDate:   ne.NewDueDate.UTC(),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return Extension{}, err
	}
	svc.sendExtensionGrantedMail(usr, asg, ext)
	return ext, nil
}

func (svc *Service) Extension(ctx context.Context, assignmentID, studentID string) (Extension, error) {
	return svc.repo.GetExtension(ctx, assignmentID, studentID)
}

func (svc *Service) QueryExtensions(ctx context.Context, assignmentID string) ([]Extension, error) {
	return svc.repo.QueryExtensionsByAssignmentID(ctx, assignmentID)
}

func (svc *Service) RevokeExtension(ctx context.Context, assignmentID, studentID string) error {
	return svc.repo.DeleteExtension(ctx, assignmentID, studentID)
}

func (svc *Service) sendExtensionGrantedMail(usr user.User, asg Assignment, ext Extension) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      fmt.Sprintf("Deadline extended: %s", asg.Title),
		TemplateName: "extension-granted",
		TemplateData: struct {
			Name       string
			Assignment string
			NewDueDate string
		}{usr.Name, asg.Title, ext.NewDueDate.Format(time.RFC1123)},
	})
}

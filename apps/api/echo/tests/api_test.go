package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/peergrade/core/assignment"
	"github.com/trezcool/peergrade/core/submission"
	"github.com/trezcool/peergrade/core/user"
	"github.com/trezcool/peergrade/tests"
)

func Test_home(t *testing.T) {
	app, _ := setup(t)

	rec := do(app, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to PeerGrade API!", rec.Body.String())
}

func Test_userApi_create(t *testing.T) {
	app, _ := setup(t)

	t.Run("valid", func(t *testing.T) {
		body := marshallObj(t, user.NewUser{
			Name:            "Awesome User",
			Username:        "awesome",
			Email:           "awesome@test.com",
			Role:            user.RoleStudent,
			Password:        "LordOfTheRings",
			PasswordConfirm: "LordOfTheRings",
		})
		rec := do(app, http.MethodPost, "/v1/users", body)
		assert.Equal(t, http.StatusCreated, rec.Code)

		var usr user.User
		decodeObj(t, rec, &usr)
		assert.NotEmpty(t, usr.ID)
		assert.Equal(t, "awesome@test.com", usr.Email)
		assert.NotContains(t, rec.Body.String(), "password")
	})

	t.Run("unknown role is rejected", func(t *testing.T) {
		body := marshallObj(t, user.NewUser{
			Name:            "Bad Role",
			Email:           "badrole@test.com",
			Role:            "janitor",
			Password:        "LordOfTheRings",
			PasswordConfirm: "LordOfTheRings",
		})
		rec := do(app, http.MethodPost, "/v1/users", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("duplicate email is rejected", func(t *testing.T) {
		body := marshallObj(t, user.NewUser{
			Name:            "Awesome Clone",
			Username:        "awesome2",
			Email:           "awesome@test.com",
			Role:            user.RoleStudent,
			Password:        "LordOfTheRings",
			PasswordConfirm: "LordOfTheRings",
		})
		rec := do(app, http.MethodPost, "/v1/users", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func Test_assignmentApi(t *testing.T) {
	app, repos := setup(t)

	instructor := testutil.CreateUser(t, repos.User, "teach", "teach@test.com", user.RoleInstructor)
	student := testutil.CreateUser(t, repos.User, "alice", "alice@test.com", user.RoleStudent)
	cls := testutil.CreateClass(t, repos.School, "Go 101", instructor.ID, student.ID)

	due := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Second)

	var asg assignment.Assignment

	t.Run("create with rubric", func(t *testing.T) {
		body := marshallObj(t, assignment.NewAssignment{
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
		rec := do(app, http.MethodPost, "/v1/assignments", body)
		assert.Equal(t, http.StatusCreated, rec.Code)

		decodeObj(t, rec, &asg)
		assert.NotEmpty(t, asg.ID)
		assert.NotEmpty(t, asg.RubricID)

		rec = do(app, http.MethodGet, "/v1/assignments/"+asg.ID+"/rubric")
		assert.Equal(t, http.StatusOK, rec.Code)
		var rub assignment.Rubric
		decodeObj(t, rec, &rub)
		assert.Len(t, rub.Criteria, 2)
	})

	t.Run("listed under its class", func(t *testing.T) {
		rec := do(app, http.MethodGet, "/v1/classes/"+cls.ID+"/assignments")
		assert.Equal(t, http.StatusOK, rec.Code)
		var asgs []assignment.Assignment
		decodeObj(t, rec, &asgs)
		assert.Len(t, asgs, 1)
	})

	t.Run("extension lifecycle", func(t *testing.T) {
		newDue := due.Add(24 * time.Hour)
		body := marshallObj(t, assignment.NewExtension{
			AssignmentID: asg.ID,
			StudentID:    student.ID,
			NewDueDate:   newDue,
		})
		rec := do(app, http.MethodPost, "/v1/assignments/"+asg.ID+"/extensions", body)
		assert.Equal(t, http.StatusCreated, rec.Code)

		rec = do(app, http.MethodGet, "/v1/assignments/"+asg.ID+"/extensions")
		assert.Equal(t, http.StatusOK, rec.Code)
		var exts []assignment.Extension
		decodeObj(t, rec, &exts)
		if assert.Len(t, exts, 1) {
			assert.True(t, exts[0].NewDueDate.Equal(newDue))
		}

		rec = do(app, http.MethodDelete, "/v1/assignments/"+asg.ID+"/extensions/"+student.ID)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = do(app, http.MethodDelete, "/v1/assignments/"+asg.ID+"/extensions/"+student.ID)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown assignment", func(t *testing.T) {
		rec := do(app, http.MethodGet, "/v1/assignments/deadbeef")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func Test_submissionApi_workflow(t *testing.T) {
	app, repos := setup(t)

	instructor := testutil.CreateUser(t, repos.User, "teach", "teach@test.com", user.RoleInstructor)
	alice := testutil.CreateUser(t, repos.User, "alice", "alice@test.com", user.RoleStudent)
	bob := testutil.CreateUser(t, repos.User, "bob", "bob@test.com", user.RoleStudent)
	outsider := testutil.CreateUser(t, repos.User, "carol", "carol@test.com", user.RoleStudent)
	cls := testutil.CreateClass(t, repos.School, "Go 101", instructor.ID, alice.ID, bob.ID)

	rub := testutil.SimpleRubric()
	asg := testutil.CreateAssignment(t, repos.Assignment, cls.ID, time.Now().UTC().Add(24*time.Hour), false, rub)

	var sub submission.Submission

	t.Run("submit on time", func(t *testing.T) {
		body := marshallObj(t, submission.NewSubmission{
			StudentID:    alice.ID,
			AssignmentID: asg.ID,
			FilePath:     "uploads/essay.pdf",
		})
		rec := do(app, http.MethodPost, "/v1/submissions", body)
		assert.Equal(t, http.StatusCreated, rec.Code)

		decodeObj(t, rec, &sub)
		assert.Equal(t, alice.ID, sub.SubmitterID)
		assert.Equal(t, assignment.OnTime, sub.Timeliness)
	})

	t.Run("status reflects the history", func(t *testing.T) {
		rec := do(app, http.MethodGet, "/v1/assignments/"+asg.ID+"/status?student_id="+alice.ID)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status": "Submitted"}`, rec.Body.String())

		rec = do(app, http.MethodGet, "/v1/assignments/"+asg.ID+"/status?student_id="+bob.ID)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status": "Not Submitted"}`, rec.Body.String())
	})

	t.Run("ineligible submitter", func(t *testing.T) {
		body := marshallObj(t, submission.NewSubmission{
			StudentID:    outsider.ID,
			AssignmentID: asg.ID,
			FilePath:     "uploads/nope.pdf",
		})
		rec := do(app, http.MethodPost, "/v1/submissions", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("review lands the final grade", func(t *testing.T) {
		body := marshallObj(t, submission.NewReview{
			SubmissionID: sub.ID,
			ReviewerID:   bob.ID,
			ReviewGrade:  85, // 90*0.75 + 70*0.25
			Grades: []submission.NewCriterionGrade{
				{CriterionID: rub.Criteria[0].ID, Grade: 90},
				{CriterionID: rub.Criteria[1].ID, Grade: 70},
			},
		})
		rec := do(app, http.MethodPost, "/v1/submissions/"+sub.ID+"/reviews", body)
		assert.Equal(t, http.StatusCreated, rec.Code)

		var rev submission.Review
		decodeObj(t, rec, &rev)
		assert.Equal(t, user.RoleStudent, rev.ReviewerRole)

		rec = do(app, http.MethodGet, "/v1/submissions/"+sub.ID)
		assert.Equal(t, http.StatusOK, rec.Code)
		var got submission.Submission
		decodeObj(t, rec, &got)
		if assert.NotNil(t, got.FinalGrade) {
			assert.Equal(t, 85.00, *got.FinalGrade)
		}
	})

	t.Run("mismatched total is rejected", func(t *testing.T) {
		body := marshallObj(t, submission.NewReview{
			SubmissionID: sub.ID,
			ReviewerID:   bob.ID,
			ReviewGrade:  100,
			Grades: []submission.NewCriterionGrade{
				{CriterionID: rub.Criteria[0].ID, Grade: 90},
				{CriterionID: rub.Criteria[1].ID, Grade: 70},
			},
		})
		rec := do(app, http.MethodPost, "/v1/submissions/"+sub.ID+"/reviews", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown review", func(t *testing.T) {
		rec := do(app, http.MethodGet, "/v1/reviews/deadbeef")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("latest wins", func(t *testing.T) {
		time.Sleep(5 * time.Millisecond)
		body := marshallObj(t, submission.NewSubmission{
			StudentID:    alice.ID,
			AssignmentID: asg.ID,
			FilePath:     "uploads/essay-v2.pdf",
		})
		rec := do(app, http.MethodPost, "/v1/submissions", body)
		assert.Equal(t, http.StatusCreated, rec.Code)

		rec = do(app, http.MethodGet, "/v1/assignments/"+asg.ID+"/submissions/latest?student_id="+alice.ID)
		assert.Equal(t, http.StatusOK, rec.Code)
		var latest submission.Submission
		decodeObj(t, rec, &latest)
		assert.Equal(t, "uploads/essay-v2.pdf", latest.FilePath)
	})
}

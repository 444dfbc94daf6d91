package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/trezcool/peergrade/apps/api/echo"
	"github.com/trezcool/peergrade/core/assignment"
	"github.com/trezcool/peergrade/core/school"
	"github.com/trezcool/peergrade/core/submission"
	"github.com/trezcool/peergrade/core/user"
	"github.com/trezcool/peergrade/services/email"
	"github.com/trezcool/peergrade/tests"
)

type httpErr struct {
	Error string `json:"error"`
}

// setup wires a full server onto a fresh in-memory store.
func setup(t *testing.T) (echoapi.Server, *testutil.Repos) {
	t.Helper()
	repos := testutil.NewRepos()
	mailSvc := emailsvc.NewConsoleServiceMock()

	app := echoapi.NewServer(&echoapi.Options{
		DisableReqLogs: true,
		Logger:         nopLogger{},
		UserSvc:        user.NewService(repos.User),
		SchoolSvc:      school.NewService(repos.School),
		AssignmentSvc:  assignment.NewService(repos.DB, repos.Assignment, repos.User, mailSvc),
		SubmissionSvc: submission.NewService(
			repos.DB, repos.Submission, repos.User, repos.School, repos.Assignment, mailSvc,
		),
	})
	return app, repos
}

type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return req, rec
}

func do(app http.Handler, method, path string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newRequest(method, path, data...)
	app.ServeHTTP(rec, req)
	return rec
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj(): %v", err)
	}
	return data
}

func decodeObj(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), obj); err != nil {
		t.Fatalf("decodeObj(): %v\nbody: %s", err, rec.Body.String())
	}
}

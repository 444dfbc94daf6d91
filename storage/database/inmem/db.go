// Package inmem provides a map-backed storage implementation for tests and
// local sandboxing. It honors the same repository contracts as the SQL
// implementation, including optimistic version checks on final grades.
package inmem

import (
	"context"
	"database/sql"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/peergrade/core"
	"github.com/trezcool/peergrade/core/assignment"
	"github.com/trezcool/peergrade/core/school"
	"github.com/trezcool/peergrade/core/submission"
	"github.com/trezcool/peergrade/core/user"
)

var errNotSQL = errors.New("inmem: raw SQL not supported")

type membership struct {
	parentID string // class or group id
	userID   string
}

// DB is the shared in-memory state behind every inmem repository.
type DB struct {
	mutex sync.RWMutex

	users       map[string]user.User
	classes     map[string]school.Class
	groups      map[string]school.Group
	enrollments []membership
	members     []membership
	assignments map[string]assignment.Assignment
	rubrics     map[string]assignment.Rubric  // keyed by assignment id
	extensions  map[string]assignment.Extension // keyed by assignment id + "/" + student id
	submissions map[string]submission.Submission
	reviews     map[string]submission.Review
}

var _ core.DB = (*DB)(nil) // interface compliance check

func NewDB() *DB {
	return &DB{
		users:       make(map[string]user.User),
		classes:     make(map[string]school.Class),
		groups:      make(map[string]school.Group),
		assignments: make(map[string]assignment.Assignment),
		rubrics:     make(map[string]assignment.Rubric),
		extensions:  make(map[string]assignment.Extension),
		submissions: make(map[string]submission.Submission),
		reviews:     make(map[string]submission.Review),
	}
}

// BeginTx returns a no-op transactor: inmem repositories synchronize on the
// shared mutex per call, and the submission version check supplies the
// lost-update protection the SQL transaction would.
func (db *DB) BeginTx(context.Context, *sql.TxOptions) (core.DBTransactor, error) {
	return noopTx{db}, nil
}

func (db *DB) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, errNotSQL
}
func (db *DB) QueryRowContext(context.Context, string, ...interface{}) *sql.Row { return nil }
func (db *DB) GetContext(context.Context, interface{}, string, ...interface{}) error {
	return errNotSQL
}
func (db *DB) SelectContext(context.Context, interface{}, string, ...interface{}) error {
	return errNotSQL
}

type noopTx struct {
	*DB
}

func (noopTx) Commit() error   { return nil }
func (noopTx) Rollback() error { return nil }

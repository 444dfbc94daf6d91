package school

import (
	"time"

	"github.com/trezcool/peergrade/core"
)

type Class struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	InstructorID string    `json:"instructor_id"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

// Group is a named set of students scoped to exactly one Class.
// A student belongs to at most one Group per Class; membership is managed
// by instructors and only read here.
type Group struct {
	ID        string    `json:"id"`
	ClassID   string    `json:"class_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// NewClass contains information needed to create a new Class.
type NewClass struct {
	Name         string `json:"name" validate:"required"`
	InstructorID string `json:"instructor_id" validate:"required,uuid4"`
}

func (nc *NewClass) Validate() error {
	nc.Name = core.CleanString(nc.Name)
	return core.Validate.Struct(nc)
}

// NewGroup contains information needed to create a new Group in a Class.
type NewGroup struct {
	ClassID string `json:"class_id" validate:"required,uuid4"`
	Name    string `json:"name" validate:"required"`
}

func (ng *NewGroup) Validate() error {
	ng.Name = core.CleanString(ng.Name)
	return core.Validate.Struct(ng)
}

package main

import (
	"context"
	"time"

	"github.com/trezcool/peergrade/core/assignment"
)

func (cli *commandLine) extend(assignmentID, studentID string, due time.Time) error {
	ext, err := cli.asgSvc.GrantExtension(context.Background(), assignment.NewExtension{
		AssignmentID: assignmentID,
		StudentID:    studentID,
		NewDueDate:   due,
	})
	if err != nil {
		return err
	}
	logger.Printf("extension granted: student %s now due %s", ext.StudentID, ext.NewDueDate.Format(time.RFC1123))
	return nil
}

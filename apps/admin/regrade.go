package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/peergrade/core/submission"
)

// regrade recomputes the final grade of every submission on an assignment,
// retrying once on a concurrent-write conflict.
func (cli *commandLine) regrade(assignmentID string) error {
	ctx := context.Background()
	subs, err := cli.subSvc.QueryForAssignment(ctx, assignmentID)
	if err != nil {
		return err
	}
	for _, sub := range subs {
		if err = cli.subSvc.FinalizeGrade(ctx, sub.ID); err != nil {
			if errors.Cause(err) == submission.ErrAggregationConflict {
				err = cli.subSvc.FinalizeGrade(ctx, sub.ID)
			}
			if err != nil {
				return errors.Wrapf(err, "regrading submission %s", sub.ID)
			}
		}
	}
	logger.Printf("regraded %d submission(s)", len(subs))
	return nil
}

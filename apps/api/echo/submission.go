package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/peergrade/core/submission"
)

type submissionApi struct {
	svc *submission.Service
}

func registerSubmissionAPI(g *echo.Group, svc *submission.Service) {
	api := submissionApi{svc: svc}

	sg := g.Group("/submissions")
	sg.POST("", api.create)
	sg.GET("/:id", api.retrieve)
	sg.POST("/:id/finalize", api.finalize)
	sg.POST("/:id/reviews", api.createReview)
	sg.GET("/:id/reviews", api.queryReviews)

	rg := g.Group("/reviews")
	rg.GET("/:id", api.retrieveReview)
	rg.PUT("/:id", api.updateReview)
	rg.DELETE("/:id", api.deleteReview)

	g.GET("/assignments/:id/submissions", api.queryForAssignment)
	g.GET("/assignments/:id/submissions/latest", api.latest)
	g.GET("/assignments/:id/status", api.status)
	g.GET("/users/:id/submissions", api.queryForStudent)
}

func (api *submissionApi) create(ctx echo.Context) error {
	var data submission.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	sub, err := api.svc.CreateSubmission(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *submissionApi) retrieve(ctx echo.Context) error {
	sub, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

// finalize forces a recomputation of the final grade; normally recomputation
// rides along with review writes.
func (api *submissionApi) finalize(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := api.svc.FinalizeGrade(ctx.Request().Context(), id); err != nil {
		return err
	}
	sub, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *submissionApi) createReview(ctx echo.Context) error {
	var data submission.NewReview
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewReview")
	}
	data.SubmissionID = ctx.Param("id")

	rev, err := api.svc.CreateReview(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, rev)
}

func (api *submissionApi) queryReviews(ctx echo.Context) error {
	revs, err := api.svc.QueryReviews(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, revs)
}

func (api *submissionApi) retrieveReview(ctx echo.Context) error {
	rev, err := api.svc.GetReview(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rev)
}

func (api *submissionApi) updateReview(ctx echo.Context) error {
	var data submission.UpdateReview
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateReview")
	}
	rev, err := api.svc.UpdateReview(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rev)
}

func (api *submissionApi) deleteReview(ctx echo.Context) error {
	if err := api.svc.DeleteReview(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *submissionApi) queryForAssignment(ctx echo.Context) error {
	subs, err := api.svc.QueryForAssignment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *submissionApi) latest(ctx echo.Context) error {
	sub, err := api.svc.Latest(ctx.Request().Context(), ctx.Param("id"), ctx.QueryParam("student_id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *submissionApi) status(ctx echo.Context) error {
	status, err := api.svc.Status(ctx.Request().Context(), ctx.Param("id"), ctx.QueryParam("student_id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"status": status})
}

func (api *submissionApi) queryForStudent(ctx echo.Context) error {
	subs, err := api.svc.QueryForStudent(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, subs)
}

package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/peergrade/core/assignment"
)

type assignmentApi struct {
	svc *assignment.Service
}

func registerAssignmentAPI(g *echo.Group, svc *assignment.Service) {
	api := assignmentApi{svc: svc}

	ag := g.Group("/assignments")
	ag.POST("", api.create)
	ag.GET("/:id", api.retrieve)
	ag.GET("/:id/rubric", api.retrieveRubric)
	ag.POST("/:id/extensions", api.grantExtension)
	ag.GET("/:id/extensions", api.queryExtensions)
	ag.DELETE("/:id/extensions/:studentID", api.revokeExtension)

	g.GET("/classes/:id/assignments", api.queryForClass)
}

func (api *assignmentApi) create(ctx echo.Context) error {
	var data assignment.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	asg, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, asg)
}

func (api *assignmentApi) retrieve(ctx echo.Context) error {
	asg, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, asg)
}

func (api *assignmentApi) retrieveRubric(ctx echo.Context) error {
	rub, err := api.svc.Rubric(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rub)
}

func (api *assignmentApi) grantExtension(ctx echo.Context) error {
	var data assignment.NewExtension
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewExtension")
	}
	data.AssignmentID = ctx.Param("id")

	ext, err := api.svc.GrantExtension(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, ext)
}

func (api *assignmentApi) queryExtensions(ctx echo.Context) error {
	exts, err := api.svc.QueryExtensions(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, exts)
}

func (api *assignmentApi) revokeExtension(ctx echo.Context) error {
	if err := api.svc.RevokeExtension(ctx.Request().Context(), ctx.Param("id"), ctx.Param("studentID")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *assignmentApi) queryForClass(ctx echo.Context) error {
	asgs, err := api.svc.QueryForClass(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, asgs)
}

package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/peergrade/core/school"
)

type schoolApi struct {
	svc *school.Service
}

func registerSchoolAPI(g *echo.Group, svc *school.Service) {
	api := schoolApi{svc: svc}

	cg := g.Group("/classes")
	cg.POST("", api.createClass)
	cg.GET("/:id", api.retrieveClass)
	cg.POST("/:id/enrollments", api.enroll)

	gg := g.Group("/groups")
	gg.POST("", api.createGroup)
	gg.GET("/:id", api.retrieveGroup)
	gg.POST("/:id/members", api.addMember)

	g.GET("/users/:id/classes", api.queryClassesForUser)
	g.GET("/users/:id/groups", api.queryGroupsForUser)
}

func (api *schoolApi) createClass(ctx echo.Context) error {
	var data school.NewClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	cls, err := api.svc.CreateClass(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, cls)
}

func (api *schoolApi) retrieveClass(ctx echo.Context) error {
	cls, err := api.svc.GetClass(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cls)
}

type membershipRequest struct {
	StudentID string `json:"student_id" validate:"required,uuid4"`
}

func (api *schoolApi) enroll(ctx echo.Context) error {
	var data membershipRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to membershipRequest")
	}
	if err := api.svc.Enroll(ctx.Request().Context(), ctx.Param("id"), data.StudentID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *schoolApi) createGroup(ctx echo.Context) error {
	var data school.NewGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGroup")
	}
	grp, err := api.svc.CreateGroup(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, grp)
}

func (api *schoolApi) retrieveGroup(ctx echo.Context) error {
	grp, err := api.svc.GetGroup(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *schoolApi) addMember(ctx echo.Context) error {
	var data membershipRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to membershipRequest")
	}
	if err := api.svc.AddGroupMember(ctx.Request().Context(), ctx.Param("id"), data.StudentID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *schoolApi) queryClassesForUser(ctx echo.Context) error {
	classes, err := api.svc.QueryClassesForUser(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *schoolApi) queryGroupsForUser(ctx echo.Context) error {
	groups, err := api.svc.QueryGroupsForUser(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, groups)
}

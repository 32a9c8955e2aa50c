package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/celsofranciscano/innotech/core/project"
)

// landingApi is the public showcase. No authentication.
type landingApi struct {
	svc *project.Service
}

func registerLandingAPI(g *echo.Group, svc *project.Service) {
	api := &landingApi{svc: svc}

	landing := g.Group("/landing")
	landing.GET("/projects", api.queryProjects)
	landing.GET("/projects/:id", api.retrieveProject)
}

func (api *landingApi) queryProjects(ctx echo.Context) error {
	filter := new(project.LandingFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to LandingFilter")
	}

	projects, err := api.svc.Published(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying published projects")
	}
	if projects == nil {
		projects = []project.Project{}
	}
	return ctx.JSON(http.StatusOK, projects)
}

func (api *landingApi) retrieveProject(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	detail, err := api.svc.PublishedDetail(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "retrieving published project")
	}
	return ctx.JSON(http.StatusOK, detail)
}

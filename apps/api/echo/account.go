package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/celsofranciscano/innotech/core/call"
	"github.com/celsofranciscano/innotech/core/project"
	"github.com/celsofranciscano/innotech/core/user"
)

// accountApi serves the student portal.
type accountApi struct {
	users    *user.Service
	calls    *call.Service
	projects *project.Service
	validate *validator.Validate
}

func registerAccountAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps, validate *validator.Validate) {
	api := &accountApi{
		users:    deps.UserSvc,
		calls:    deps.CallSvc,
		projects: deps.ProjectSvc,
		validate: validate,
	}

	calls := g.Group("/account/calls", jwt, roleGate(user.RoleStudent))
	calls.GET("", api.queryCalls)
	calls.POST("/:callId/project", api.submitProject)
}

func (api *accountApi) queryCalls(ctx echo.Context) error {
	calls, err := api.calls.ActiveCalls(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying active calls")
	}
	if calls == nil {
		calls = []call.Call{}
	}
	return ctx.JSON(http.StatusOK, calls)
}

func (api *accountApi) submitProject(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	callID, err := paramID(ctx, "callId")
	if err != nil {
		return err
	}

	var data project.NewProject
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewProject")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	leader, err := getContextUser(ctx, api.users, claims)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	c, err := api.calls.GetByID(ctx.Request().Context(), callID)
	if err != nil {
		return errors.Wrap(err, "finding call")
	}

	detail, err := api.projects.Create(ctx.Request().Context(), c, data, leader, claims.Actor())
	if err != nil {
		return errors.Wrap(err, "creating project")
	}
	return ctx.JSON(http.StatusCreated, detail)
}

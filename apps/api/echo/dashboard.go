package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/celsofranciscano/innotech/core/call"
	"github.com/celsofranciscano/innotech/core/project"
	"github.com/celsofranciscano/innotech/core/review"
	"github.com/celsofranciscano/innotech/core/user"
)

type dashboardApi struct {
	calls    *call.Service
	projects *project.Service
	reviews  *review.Service
	validate *validator.Validate
}

func registerDashboardAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps, validate *validator.Validate) {
	api := &dashboardApi{
		calls:    deps.CallSvc,
		projects: deps.ProjectSvc,
		reviews:  deps.ReviewSvc,
		validate: validate,
	}
	coordinator := roleGate(user.RoleCoordinator)
	reviewer := roleGate(user.ReviewerRoles...)

	calls := g.Group("/dashboard/calls", jwt)
	calls.GET("", api.queryCalls, reviewer)
	calls.POST("", api.createCall, coordinator)
	calls.GET("/:callId", api.retrieveCall, reviewer)

	calls.GET("/:callId/criteria", api.queryCriteria, reviewer)
	calls.POST("/:callId/criteria", api.createCriterion, coordinator)

	calls.GET("/:callId/jurors", api.queryJurors, coordinator)
	calls.POST("/:callId/jurors", api.assignJuror, coordinator)

	calls.GET("/:callId/projects", api.queryProjects, reviewer)
	calls.GET("/:callId/projects/:projectId", api.retrieveProject, reviewer)
	calls.POST("/:callId/projects/:projectId", api.submitScores, reviewer)
	calls.PATCH("/:callId/projects/:projectId", api.updateProject, coordinator)
}

// ownedCall resolves the :callId of the path among the calls of the context user.
func (api *dashboardApi) ownedCall(ctx echo.Context) (call.Call, Claims, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return call.Call{}, claims, errors.Wrap(err, "getting context claims")
	}
	id, err := paramID(ctx, "callId")
	if err != nil {
		return call.Call{}, claims, err
	}
	c, err := api.calls.Owned(ctx.Request().Context(), id, claims.User())
	if err != nil {
		return call.Call{}, claims, errors.Wrap(err, "finding owned call")
	}
	return c, claims, nil
}

// accessibleCall resolves the :callId of the path among the calls the context user owns or reviews.
func (api *dashboardApi) accessibleCall(ctx echo.Context) (call.Call, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return call.Call{}, errors.Wrap(err, "getting context claims")
	}
	id, err := paramID(ctx, "callId")
	if err != nil {
		return call.Call{}, err
	}
	c, err := api.calls.Accessible(ctx.Request().Context(), id, claims.User())
	if err != nil {
		return call.Call{}, errors.Wrap(err, "finding accessible call")
	}
	return c, nil
}

// Calls

func (api *dashboardApi) queryCalls(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	calls, err := api.calls.DashboardCalls(ctx.Request().Context(), claims.User())
	if err != nil {
		return errors.Wrap(err, "querying calls")
	}
	if calls == nil {
		calls = []call.Call{}
	}
	return ctx.JSON(http.StatusOK, calls)
}

func (api *dashboardApi) createCall(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data call.NewCall
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCall")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.calls.Create(ctx.Request().Context(), data, claims.User(), claims.Actor())
	if err != nil {
		return errors.Wrap(err, "creating call")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *dashboardApi) retrieveCall(ctx echo.Context) error {
	c, err := api.accessibleCall(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

// Criteria

// queryCriteria lists the rubric of a call to its owner and its jurors.
func (api *dashboardApi) queryCriteria(ctx echo.Context) error {
	c, err := api.accessibleCall(ctx)
	if err != nil {
		return err
	}
	criteria, err := api.calls.Criteria(ctx.Request().Context(), c.ID)
	if err != nil {
		return errors.Wrap(err, "querying criteria")
	}
	if criteria == nil {
		criteria = []call.Criterion{}
	}
	return ctx.JSON(http.StatusOK, criteria)
}

func (api *dashboardApi) createCriterion(ctx echo.Context) error {
	c, claims, err := api.ownedCall(ctx)
	if err != nil {
		return err
	}

	var data call.NewCriterion
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCriterion")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	cr, err := api.calls.CreateCriterion(ctx.Request().Context(), c, data, claims.Actor())
	if err != nil {
		return errors.Wrap(err, "creating criterion")
	}
	return ctx.JSON(http.StatusCreated, cr)
}

// Jurors

func (api *dashboardApi) queryJurors(ctx echo.Context) error {
	c, _, err := api.ownedCall(ctx)
	if err != nil {
		return err
	}
	jurors, err := api.calls.Jurors(ctx.Request().Context(), c.ID)
	if err != nil {
		return errors.Wrap(err, "querying jurors")
	}
	if jurors == nil {
		jurors = []call.JurorAssignment{}
	}
	return ctx.JSON(http.StatusOK, jurors)
}

func (api *dashboardApi) assignJuror(ctx echo.Context) error {
	c, claims, err := api.ownedCall(ctx)
	if err != nil {
		return err
	}

	var data call.NewJurorAssignment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewJurorAssignment")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	ja, err := api.calls.AssignJuror(ctx.Request().Context(), c, data, claims.Actor())
	if err != nil {
		return errors.Wrap(err, "assigning juror")
	}
	return ctx.JSON(http.StatusCreated, ja)
}

// Projects

func (api *dashboardApi) queryProjects(ctx echo.Context) error {
	c, err := api.accessibleCall(ctx)
	if err != nil {
		return err
	}
	projects, err := api.reviews.ScoredProjects(ctx.Request().Context(), c)
	if err != nil {
		return errors.Wrap(err, "querying scored projects")
	}
	return ctx.JSON(http.StatusOK, projects)
}

func (api *dashboardApi) retrieveProject(ctx echo.Context) error {
	c, err := api.accessibleCall(ctx)
	if err != nil {
		return err
	}
	projectID, err := paramID(ctx, "projectId")
	if err != nil {
		return err
	}
	detail, err := api.reviews.ProjectDetail(ctx.Request().Context(), c, projectID)
	if err != nil {
		return errors.Wrap(err, "retrieving project detail")
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *dashboardApi) submitScores(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	callID, err := paramID(ctx, "callId")
	if err != nil {
		return err
	}
	projectID, err := paramID(ctx, "projectId")
	if err != nil {
		return err
	}

	var data review.Submission
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Submission")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	details, err := api.reviews.SubmitScores(ctx.Request().Context(), callID, projectID, claims.User(), data, claims.Actor())
	if err != nil {
		return errors.Wrap(err, "submitting scores")
	}
	return ctx.JSON(http.StatusCreated, details)
}

func (api *dashboardApi) updateProject(ctx echo.Context) error {
	c, claims, err := api.ownedCall(ctx)
	if err != nil {
		return err
	}
	projectID, err := paramID(ctx, "projectId")
	if err != nil {
		return err
	}

	var data project.UpdateProject
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProject")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	p, changed, err := api.projects.Update(ctx.Request().Context(), c.ID, projectID, data, claims.Actor())
	if err != nil {
		return errors.Wrap(err, "updating project")
	}
	if !changed {
		return ctx.JSON(http.StatusOK, noChanges)
	}
	return ctx.JSON(http.StatusOK, p)
}

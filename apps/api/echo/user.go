package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/celsofranciscano/innotech/core/audit"
	"github.com/celsofranciscano/innotech/core/user"
)

type userApi struct {
	svc      *user.Service
	history  *audit.Service
	validate *validator.Validate
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *user.Service, history *audit.Service, validate *validator.Validate) {
	api := &userApi{svc: svc, history: history, validate: validate}

	// superadmin only
	settings := g.Group("/settings", jwt, roleGate())

	privileges := settings.Group("/privileges")
	privileges.GET("", api.queryPrivileges)
	privileges.POST("", api.createPrivilege)
	privileges.GET("/:id", api.retrievePrivilege)
	privileges.PUT("/:id", api.updatePrivilege)

	users := settings.Group("/users")
	users.GET("", api.query)
	users.POST("", api.create)
	users.GET("/:id", api.retrieve)
	users.PUT("/:id", api.update)
	users.GET("/:id/devices", api.queryDevices)
}

type (
	PrivilegeDetail struct {
		user.Privilege
		History audit.Trail `json:"history"`
	}

	UserDetail struct {
		user.User
		History audit.Trail `json:"history"`
	}
)

// Privileges

func (api *userApi) queryPrivileges(ctx echo.Context) error {
	privileges, err := api.svc.QueryPrivileges(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying privileges")
	}
	if privileges == nil {
		privileges = []user.Privilege{}
	}
	return ctx.JSON(http.StatusOK, privileges)
}

func (api *userApi) createPrivilege(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data user.NewPrivilege
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPrivilege")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	priv, err := api.svc.CreatePrivilege(ctx.Request().Context(), data, claims.Actor())
	if err != nil {
		return errors.Wrap(err, "creating privilege")
	}
	return ctx.JSON(http.StatusCreated, priv)
}

func (api *userApi) retrievePrivilege(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	priv, err := api.svc.GetPrivilege(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding privilege")
	}
	trail, err := api.history.Trail(ctx.Request().Context(), audit.EntityPrivilege, priv.ID)
	if err != nil {
		return errors.Wrap(err, "building history")
	}
	return ctx.JSON(http.StatusOK, PrivilegeDetail{Privilege: priv, History: trail})
}

func (api *userApi) updatePrivilege(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}

	var data user.UpdatePrivilege
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePrivilege")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	priv, changed, err := api.svc.UpdatePrivilege(ctx.Request().Context(), id, data, claims.Actor())
	if err != nil {
		return errors.Wrap(err, "updating privilege")
	}
	if !changed {
		return ctx.JSON(http.StatusOK, noChanges)
	}
	return ctx.JSON(http.StatusOK, priv)
}

// Users

func (api *userApi) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data user.NewUser
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Create(ctx.Request().Context(), data, claims.Actor())
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) retrieve(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	usr, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding user")
	}
	trail, err := api.history.Trail(ctx.Request().Context(), audit.EntityUser, usr.ID)
	if err != nil {
		return errors.Wrap(err, "building history")
	}
	return ctx.JSON(http.StatusOK, UserDetail{User: usr, History: trail})
}

func (api *userApi) update(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}

	var data user.UpdateUser
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	// Say No to Suicide! the context user cannot deactivate themselves
	if id == claims.UserID && data.IsActive != nil && !*data.IsActive {
		return errHttpForbidden
	}

	usr, changed, err := api.svc.Update(ctx.Request().Context(), id, data, claims.Actor())
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	if !changed {
		return ctx.JSON(http.StatusOK, noChanges)
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) queryDevices(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	devices, err := api.svc.Devices(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "querying devices")
	}
	if devices == nil {
		devices = []user.Device{}
	}
	return ctx.JSON(http.StatusOK, devices)
}

package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/celsofranciscano/innotech/core/audit"
	"github.com/celsofranciscano/innotech/core/catalog"
	"github.com/celsofranciscano/innotech/core/user"
)

type catalogApi struct {
	svc      *catalog.Service
	history  *audit.Service
	validate *validator.Validate
}

func registerCatalogAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *catalog.Service, history *audit.Service, validate *validator.Validate) {
	api := &catalogApi{svc: svc, history: history, validate: validate}

	settings := g.Group("/settings/calls", jwt, roleGate(user.RoleCoordinator))
	settings.GET("/:kind", api.query)
	settings.POST("/:kind", api.create)
	settings.GET("/:kind/:id", api.retrieve)
	settings.PUT("/:kind/:id", api.update)
}

// ItemDetail is a catalog item with its history.
type ItemDetail struct {
	catalog.Item
	History audit.Trail `json:"history"`
}

func paramKind(ctx echo.Context) (catalog.Kind, error) {
	kind, ok := catalog.ParseKind(ctx.Param("kind"))
	if !ok {
		return "", errHttpNotFound
	}
	return kind, nil
}

func (api *catalogApi) query(ctx echo.Context) error {
	kind, err := paramKind(ctx)
	if err != nil {
		return err
	}
	items, err := api.svc.List(ctx.Request().Context(), kind)
	if err != nil {
		return errors.Wrapf(err, "querying %s", kind)
	}
	if items == nil {
		items = []catalog.Item{}
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *catalogApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	kind, err := paramKind(ctx)
	if err != nil {
		return err
	}

	var data catalog.NewItem
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewItem")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	item, err := api.svc.Create(ctx.Request().Context(), kind, data, claims.Actor())
	if err != nil {
		return errors.Wrapf(err, "creating %s item", kind)
	}
	return ctx.JSON(http.StatusCreated, item)
}

func (api *catalogApi) retrieve(ctx echo.Context) error {
	kind, err := paramKind(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}

	item, err := api.svc.Get(ctx.Request().Context(), kind, id)
	if err != nil {
		return errors.Wrapf(err, "finding %s item", kind)
	}
	trail, err := api.history.Trail(ctx.Request().Context(), kind.EntityType(), item.ID)
	if err != nil {
		return errors.Wrap(err, "building history")
	}
	return ctx.JSON(http.StatusOK, ItemDetail{Item: item, History: trail})
}

func (api *catalogApi) update(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	kind, err := paramKind(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}

	var data catalog.UpdateItem
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateItem")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	item, changed, err := api.svc.Update(ctx.Request().Context(), kind, id, data, claims.Actor())
	if err != nil {
		return errors.Wrapf(err, "updating %s item", kind)
	}
	if !changed {
		return ctx.JSON(http.StatusOK, noChanges)
	}
	return ctx.JSON(http.StatusOK, item)
}

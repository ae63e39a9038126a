package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kitabu/kitabu/core/settings"
)

type settingsApi struct {
	svc      settings.ServiceInterface
	validate *validator.Validate
}

func registerSettingsAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc settings.ServiceInterface, validate *validator.Validate) {
	api := settingsApi{
		svc:      svc,
		validate: validate,
	}

	// un-authed read: the marketing site pulls banner copy and toggles here
	g.GET("/site-settings/:key", api.retrieve)

	sg := g.Group("/settings", jwt, adminMiddleware())
	sg.GET("", api.query)
	sg.GET("/:key", api.retrieve)
	sg.PUT("/:key", api.put)
	sg.DELETE("/:key", api.destroy)
}

// Handlers

func (api *settingsApi) query(ctx echo.Context) error {
	stgs, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying settings")
	}
	if stgs == nil {
		stgs = []settings.Setting{}
	}
	return ctx.JSON(http.StatusOK, stgs)
}

func (api *settingsApi) retrieve(ctx echo.Context) error {
	stg, err := api.svc.Get(ctx.Request().Context(), ctx.Param("key"))
	if err != nil {
		if errors.Cause(err) == settings.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding setting by key")
	}
	return ctx.JSON(http.StatusOK, stg)
}

func (api *settingsApi) put(ctx echo.Context) error {
	var data settings.PutSetting
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PutSetting")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	stg, err := api.svc.Put(ctx.Request().Context(), ctx.Param("key"), data.Value, claims.Username)
	if err != nil {
		return errors.Wrap(err, "saving setting")
	}
	return ctx.JSON(http.StatusOK, stg)
}

func (api *settingsApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("key")); err != nil {
		if errors.Cause(err) == settings.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "deleting setting")
	}
	return ctx.NoContent(http.StatusNoContent)
}

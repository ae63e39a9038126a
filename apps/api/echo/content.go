package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kitabu/kitabu/core"
	"github.com/kitabu/kitabu/core/content"
)

type contentApi struct {
	svc      content.ServiceInterface
	validate *validator.Validate
}

func registerContentAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc content.ServiceInterface, validate *validator.Validate) {
	api := contentApi{
		svc:      svc,
		validate: validate,
	}

	// un-authed listing for the family-facing library; published items only
	g.GET("/library", api.library)

	cg := g.Group("/content", jwt, adminMiddleware())
	cg.POST("", api.create)
	cg.GET("", api.query)

	dg := cg.Group("/:id", itemObjectMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
}

// Handlers

func (api *contentApi) library(ctx echo.Context) error {
	filter := new(content.QueryFilter)
	page := new(Pagination)
	page.Bind(ctx)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, core.NewPaginated([]content.Item{}, 0, page.Pagination))
	}
	filter.Clean()
	published := true
	filter.Published = &published

	items, total, err := api.svc.Query(ctx.Request().Context(), filter, page.Pagination)
	if err != nil {
		return errors.Wrap(err, "querying library")
	}
	if items == nil {
		items = []content.Item{}
	}
	return ctx.JSON(http.StatusOK, core.NewPaginated(items, total, page.Pagination))
}

func (api *contentApi) create(ctx echo.Context) error {
	var data content.NewItem
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewItem")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	itm, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating content item")
	}
	return ctx.JSON(http.StatusCreated, itm)
}

func (api *contentApi) query(ctx echo.Context) error {
	filter := new(content.QueryFilter)
	page := new(Pagination)
	page.Bind(ctx)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, core.NewPaginated([]content.Item{}, 0, page.Pagination))
	}
	filter.Clean()

	items, total, err := api.svc.Query(ctx.Request().Context(), filter, page.Pagination)
	if err != nil {
		return errors.Wrap(err, "querying content items")
	}
	if items == nil {
		items = []content.Item{}
	}
	return ctx.JSON(http.StatusOK, core.NewPaginated(items, total, page.Pagination))
}

func (api *contentApi) retrieve(ctx echo.Context) error {
	itm, ok := ctx.Get("object").(content.Item)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving item from context")
	}
	return ctx.JSON(http.StatusOK, itm)
}

func (api *contentApi) update(ctx echo.Context) error {
	itm, ok := ctx.Get("object").(content.Item)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving item from context")
	}

	var data content.UpdateItem
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateItem")
	}
	if err := data.Validate(api.validate, itm); err != nil {
		return err
	}

	itm, err := api.svc.Update(ctx.Request().Context(), itm, data)
	if err != nil {
		return errors.Wrap(err, "updating content item")
	}
	return ctx.JSON(http.StatusOK, itm)
}

func (api *contentApi) destroy(ctx echo.Context) error {
	itm, ok := ctx.Get("object").(content.Item)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving item from context")
	}

	if err := api.svc.Delete(ctx.Request().Context(), itm.ID); err != nil {
		return errors.Wrap(err, "deleting content item")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func itemObjectMiddleware(svc content.ServiceInterface) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			itm, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == content.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding item by ID")
			}
			ctx.Set("object", itm)
			return next(ctx)
		}
	}
}

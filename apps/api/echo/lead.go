package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kitabu/kitabu/core"
	"github.com/kitabu/kitabu/core/lead"
)

type leadApi struct {
	svc      lead.ServiceInterface
	validate *validator.Validate
}

func registerLeadAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc lead.ServiceInterface, validate *validator.Validate) {
	api := leadApi{
		svc:      svc,
		validate: validate,
	}

	// un-authed funnel endpoint: the marketing site captures leads here
	g.POST("/funnel/leads", api.create)

	// console endpoints
	lg := g.Group("/leads", jwt, staffMiddleware())
	lg.POST("", api.create)
	lg.GET("", api.query)

	// detail endpoints
	dg := lg.Group("/:id", leadObjectMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.PATCH("/status", api.changeStatus)
	dg.POST("/assessment", api.recordAssessment)
}

// Handlers

func (api *leadApi) create(ctx echo.Context) error {
	var data lead.NewLead
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLead")
	}
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}

	led, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating lead")
	}
	return ctx.JSON(http.StatusCreated, led)
}

func (api *leadApi) query(ctx echo.Context) error {
	filter := new(lead.QueryFilter)
	page := new(Pagination)
	page.Bind(ctx)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, core.NewPaginated([]lead.Lead{}, 0, page.Pagination))
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	leads, total, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings, page.Pagination)
	if err != nil {
		return errors.Wrap(err, "querying leads")
	}
	if leads == nil {
		leads = []lead.Lead{}
	}
	return ctx.JSON(http.StatusOK, core.NewPaginated(leads, total, page.Pagination))
}

func (api *leadApi) retrieve(ctx echo.Context) error {
	led, ok := ctx.Get("object").(lead.Lead)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving lead from context")
	}
	return ctx.JSON(http.StatusOK, led)
}

func (api *leadApi) update(ctx echo.Context) error {
	led, ok := ctx.Get("object").(lead.Lead)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving lead from context")
	}

	var data lead.UpdateLead
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateLead")
	}
	if err := data.Validate(api.validate, led, api.svc); err != nil {
		return err
	}

	led, err := api.svc.Update(ctx.Request().Context(), led, data)
	if err != nil {
		return errors.Wrap(err, "updating lead")
	}
	return ctx.JSON(http.StatusOK, led)
}

func (api *leadApi) changeStatus(ctx echo.Context) error {
	led, ok := ctx.Get("object").(lead.Lead)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving lead from context")
	}

	var data lead.StatusChange
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatusChange")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	led, err := api.svc.ChangeStatus(ctx.Request().Context(), led, data)
	if err != nil {
		return errors.Wrap(err, "changing lead status")
	}
	return ctx.JSON(http.StatusOK, led)
}

func (api *leadApi) recordAssessment(ctx echo.Context) error {
	led, ok := ctx.Get("object").(lead.Lead)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving lead from context")
	}

	var data lead.Assessment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Assessment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	led, err := api.svc.RecordAssessment(ctx.Request().Context(), led, data)
	if err != nil {
		return errors.Wrap(err, "recording assessment")
	}
	return ctx.JSON(http.StatusOK, led)
}

func leadObjectMiddleware(svc lead.ServiceInterface) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			led, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == lead.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding lead by ID")
			}
			ctx.Set("object", led)
			return next(ctx)
		}
	}
}

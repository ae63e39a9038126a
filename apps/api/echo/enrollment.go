package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kitabu/kitabu/core"
	"github.com/kitabu/kitabu/core/enrollment"
)

type enrollmentApi struct {
	svc      enrollment.ServiceInterface
	validate *validator.Validate
}

func registerEnrollmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc enrollment.ServiceInterface, validate *validator.Validate) {
	api := enrollmentApi{
		svc:      svc,
		validate: validate,
	}

	eg := g.Group("/enrollments", jwt, staffMiddleware())
	eg.POST("", api.create)
	eg.GET("", api.query)
	eg.GET("/:id", api.retrieve)

	// un-authed gateway webhook; the gateway authenticates via its reference,
	// replays are idempotent
	g.POST("/payments/webhook", api.ingestPayment)

	pg := g.Group("/payments", jwt, staffMiddleware())
	pg.GET("", api.queryPayments)

	pd := pg.Group("/:id", paymentObjectMiddleware(api.svc))
	pd.GET("", api.retrievePayment)
	pd.PATCH("/link", api.linkPayment)
}

// Handlers

func (api *enrollmentApi) create(ctx echo.Context) error {
	var data enrollment.NewEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	enr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating enrollment")
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *enrollmentApi) query(ctx echo.Context) error {
	page := new(Pagination)
	page.Bind(ctx)

	enrollments, total, err := api.svc.Query(ctx.Request().Context(), page.Pagination)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	if enrollments == nil {
		enrollments = []enrollment.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, core.NewPaginated(enrollments, total, page.Pagination))
}

func (api *enrollmentApi) retrieve(ctx echo.Context) error {
	enr, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == enrollment.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding enrollment by ID")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *enrollmentApi) ingestPayment(ctx echo.Context) error {
	var data enrollment.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	pmt, err := api.svc.IngestPayment(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "ingesting payment")
	}
	return ctx.JSON(http.StatusCreated, pmt)
}

func (api *enrollmentApi) queryPayments(ctx echo.Context) error {
	filter := new(enrollment.PaymentFilter)
	page := new(Pagination)
	page.Bind(ctx)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, core.NewPaginated([]enrollment.Payment{}, 0, page.Pagination))
	}
	filter.Clean()

	payments, total, err := api.svc.QueryPayments(ctx.Request().Context(), filter, page.Pagination)
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	if payments == nil {
		payments = []enrollment.Payment{}
	}
	return ctx.JSON(http.StatusOK, core.NewPaginated(payments, total, page.Pagination))
}

func (api *enrollmentApi) retrievePayment(ctx echo.Context) error {
	pmt, ok := ctx.Get("object").(enrollment.Payment)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving payment from context")
	}
	return ctx.JSON(http.StatusOK, pmt)
}

func (api *enrollmentApi) linkPayment(ctx echo.Context) error {
	pmt, ok := ctx.Get("object").(enrollment.Payment)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving payment from context")
	}

	var data enrollment.LinkPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LinkPayment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	pmt, err := api.svc.LinkPayment(ctx.Request().Context(), pmt, data)
	if err != nil {
		return errors.Wrap(err, "linking payment")
	}
	return ctx.JSON(http.StatusOK, pmt)
}

func paymentObjectMiddleware(svc enrollment.ServiceInterface) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			pmt, err := svc.GetPayment(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == enrollment.ErrPaymentNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding payment by ID")
			}
			ctx.Set("object", pmt)
			return next(ctx)
		}
	}
}

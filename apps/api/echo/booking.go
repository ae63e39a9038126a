package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kitabu/kitabu/core"
	"github.com/kitabu/kitabu/core/booking"
)

// errCodeAlreadyBooked is the machine-readable code the wizard keys off to
// send the visitor back to the schedule step.
const errCodeAlreadyBooked = "ALREADY_BOOKED"

type bookingApi struct {
	svc      booking.ServiceInterface
	validate *validator.Validate
}

func registerBookingAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc booking.ServiceInterface, validate *validator.Validate) {
	api := bookingApi{
		svc:      svc,
		validate: validate,
	}

	// un-authed funnel endpoints: the booking wizard consumes these
	g.GET("/funnel/slots", api.availability)
	g.POST("/funnel/bookings", api.book)

	// console endpoints
	cg := g.Group("/calls", jwt, staffMiddleware())
	cg.GET("", api.query)

	// detail endpoints
	dg := cg.Group("/:id", callObjectMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PATCH("/status", api.changeStatus)
	dg.PATCH("/coach", api.reassignCoach)
}

// Handlers

func (api *bookingApi) availability(ctx echo.Context) error {
	days, _ := strconv.Atoi(ctx.QueryParam("days"))

	schedule, err := api.svc.Availability(ctx.Request().Context(), days)
	if err != nil {
		return errors.Wrap(err, "listing availability")
	}
	if schedule == nil {
		schedule = []booking.DaySlots{}
	}
	return ctx.JSON(http.StatusOK, schedule)
}

func (api *bookingApi) book(ctx echo.Context) error {
	var data booking.BookingRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BookingRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cll, err := api.svc.Book(ctx.Request().Context(), data)
	if err != nil {
		// lost the race for the slot: the wizard re-fetches availability
		if errors.Cause(err) == booking.ErrSlotTaken {
			return ctx.JSON(http.StatusConflict, echo.Map{
				"code":  errCodeAlreadyBooked,
				"error": booking.ErrSlotTaken.Error(),
			})
		}
		return errors.Wrap(err, "booking slot")
	}
	return ctx.JSON(http.StatusCreated, cll)
}

func (api *bookingApi) query(ctx echo.Context) error {
	filter := new(booking.QueryFilter)
	page := new(Pagination)
	page.Bind(ctx)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, core.NewPaginated([]booking.Call{}, 0, page.Pagination))
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	calls, total, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings, page.Pagination)
	if err != nil {
		return errors.Wrap(err, "querying calls")
	}
	if calls == nil {
		calls = []booking.Call{}
	}
	return ctx.JSON(http.StatusOK, core.NewPaginated(calls, total, page.Pagination))
}

func (api *bookingApi) retrieve(ctx echo.Context) error {
	cll, ok := ctx.Get("object").(booking.Call)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving call from context")
	}
	return ctx.JSON(http.StatusOK, cll)
}

func (api *bookingApi) changeStatus(ctx echo.Context) error {
	cll, ok := ctx.Get("object").(booking.Call)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving call from context")
	}

	var data booking.StatusChange
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatusChange")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cll, err := api.svc.ChangeStatus(ctx.Request().Context(), cll, data)
	if err != nil {
		return errors.Wrap(err, "changing call status")
	}
	return ctx.JSON(http.StatusOK, cll)
}

func (api *bookingApi) reassignCoach(ctx echo.Context) error {
	cll, ok := ctx.Get("object").(booking.Call)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving call from context")
	}

	var data booking.Reassign
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Reassign")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cll, err := api.svc.ReassignCoach(ctx.Request().Context(), cll, data)
	if err != nil {
		return errors.Wrap(err, "reassigning call")
	}
	return ctx.JSON(http.StatusOK, cll)
}

func callObjectMiddleware(svc booking.ServiceInterface) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			cll, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == booking.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding call by ID")
			}
			ctx.Set("object", cll)
			return next(ctx)
		}
	}
}

package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kitabu/kitabu/core/coach"
)

type coachApi struct {
	svc      coach.ServiceInterface
	validate *validator.Validate
}

func registerCoachAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc coach.ServiceInterface, validate *validator.Validate) {
	api := coachApi{
		svc:      svc,
		validate: validate,
	}

	cg := g.Group("/coaches", jwt, adminMiddleware())
	cg.POST("", api.create)
	cg.GET("", api.query)

	dg := cg.Group("/:id", coachObjectMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)

	// revenue-split tiers
	gg := g.Group("/coach-groups", jwt, adminMiddleware())
	gg.POST("", api.createGroup)
	gg.GET("", api.queryGroups)

	gd := gg.Group("/:id", groupObjectMiddleware(api.svc))
	gd.GET("", api.retrieveGroup)
	gd.PUT("", api.updateGroup)
	gd.DELETE("", api.destroyGroup)
}

// Handlers

func (api *coachApi) create(ctx echo.Context) error {
	var data coach.NewCoach
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCoach")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cch, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating coach")
	}
	return ctx.JSON(http.StatusCreated, cch)
}

func (api *coachApi) query(ctx echo.Context) error {
	filter := new(coach.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []coach.Coach{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	coaches, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying coaches")
	}
	if coaches == nil {
		coaches = []coach.Coach{}
	}
	return ctx.JSON(http.StatusOK, coaches)
}

func (api *coachApi) retrieve(ctx echo.Context) error {
	cch, ok := ctx.Get("object").(coach.Coach)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving coach from context")
	}
	return ctx.JSON(http.StatusOK, cch)
}

func (api *coachApi) update(ctx echo.Context) error {
	cch, ok := ctx.Get("object").(coach.Coach)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving coach from context")
	}

	var data coach.UpdateCoach
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCoach")
	}
	if err := data.Validate(api.validate, cch); err != nil {
		return err
	}

	cch, err := api.svc.Update(ctx.Request().Context(), cch, data)
	if err != nil {
		return errors.Wrap(err, "updating coach")
	}
	return ctx.JSON(http.StatusOK, cch)
}

func (api *coachApi) createGroup(ctx echo.Context) error {
	var data coach.NewGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGroup")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	grp, err := api.svc.CreateGroup(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating coach group")
	}
	return ctx.JSON(http.StatusCreated, grp)
}

func (api *coachApi) queryGroups(ctx echo.Context) error {
	groups, err := api.svc.QueryAllGroups(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying coach groups")
	}
	if groups == nil {
		groups = []coach.Group{}
	}
	return ctx.JSON(http.StatusOK, groups)
}

func (api *coachApi) retrieveGroup(ctx echo.Context) error {
	grp, ok := ctx.Get("object").(coach.Group)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving group from context")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *coachApi) updateGroup(ctx echo.Context) error {
	grp, ok := ctx.Get("object").(coach.Group)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving group from context")
	}

	var data coach.UpdateGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateGroup")
	}
	if err := data.Validate(api.validate, grp); err != nil {
		return err
	}

	grp, err := api.svc.UpdateGroup(ctx.Request().Context(), grp, data)
	if err != nil {
		return errors.Wrap(err, "updating coach group")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *coachApi) destroyGroup(ctx echo.Context) error {
	grp, ok := ctx.Get("object").(coach.Group)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving group from context")
	}

	if err := api.svc.DeleteGroup(ctx.Request().Context(), grp.ID); err != nil {
		return errors.Wrap(err, "deleting coach group")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func coachObjectMiddleware(svc coach.ServiceInterface) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			cch, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == coach.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding coach by ID")
			}
			ctx.Set("object", cch)
			return next(ctx)
		}
	}
}

func groupObjectMiddleware(svc coach.ServiceInterface) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			grp, err := svc.GetGroup(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == coach.ErrGroupNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding group by ID")
			}
			ctx.Set("object", grp)
			return next(ctx)
		}
	}
}

package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/evasensorial/eva/core"
	"github.com/evasensorial/eva/core/therapist"
)

type LoginResponse struct {
	Token string              `json:"token"`
	User  therapist.Therapist `json:"user"`
}

type therapistApi struct {
	svc      *therapist.Service
	validate *validator.Validate
	conf     *core.Config
}

func registerTherapistAPI(
	g *echo.Group,
	authed []echo.MiddlewareFunc,
	svc *therapist.Service,
	validate *validator.Validate,
	conf *core.Config,
) {
	api := therapistApi{
		svc:      svc,
		validate: validate,
		conf:     conf,
	}

	// un-authed endpoints
	g.POST("/auth/login", api.login)

	// authed endpoints
	tg := g.Group("/terapeutas", authed...)
	tg.POST("", api.create)
	tg.GET("", api.query)
	tg.GET("/:id", api.retrieve)
	tg.PUT("/:id", api.update)
	tg.DELETE("/:id", api.destroy)
}

// Handlers

func (api *therapistApi) login(ctx echo.Context) error {
	var data therapist.LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(GetTherapistClaims(t, api.conf), api.conf)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: t})
}

func (api *therapistApi) create(ctx echo.Context) error {
	var data therapist.NewTherapist
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTherapist")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating therapist")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *therapistApi) query(ctx echo.Context) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)

	therapists, err := api.svc.Query(ctx.Request().Context(), ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying therapists")
	}
	if therapists == nil {
		therapists = []therapist.Therapist{}
	}
	return ctx.JSON(http.StatusOK, therapists)
}

func (api *therapistApi) retrieve(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	t, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting therapist")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *therapistApi) update(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	var data therapist.UpdateTherapist
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTherapist")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.Update(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating therapist")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *therapistApi) destroy(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting therapist")
	}
	return ctx.JSON(http.StatusOK, messageResponse{Message: "Eliminado"})
}

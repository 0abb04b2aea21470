package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/evasensorial/eva/core/form"
)

type FormCreatedResponse struct {
	FormID int `json:"formulario_id"`
}

type formApi struct {
	svc      *form.Service
	validate *validator.Validate
}

func registerFormAPI(
	g *echo.Group,
	authed []echo.MiddlewareFunc,
	svc *form.Service,
	validate *validator.Validate,
) {
	api := formApi{
		svc:      svc,
		validate: validate,
	}

	fg := g.Group("/formularios")

	// the public form view loads the whole structure
	fg.GET("/:id", api.retrieve)

	ag := fg.Group("", authed...)
	ag.POST("", api.create)
	ag.GET("", api.query)
	ag.PUT("/:id", api.update)
	ag.DELETE("/:id", api.destroy)
}

// Handlers

func (api *formApi) create(ctx echo.Context) error {
	var data form.NewForm
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewForm")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	f, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating form")
	}
	return ctx.JSON(http.StatusCreated, FormCreatedResponse{FormID: f.ID})
}

func (api *formApi) query(ctx echo.Context) error {
	forms, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying forms")
	}
	if forms == nil {
		forms = []form.Form{}
	}
	return ctx.JSON(http.StatusOK, forms)
}

func (api *formApi) retrieve(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	detail, err := api.svc.GetDetail(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting form")
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *formApi) update(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	var data form.UpdateForm
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateForm")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	f, err := api.svc.Update(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating form")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *formApi) destroy(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting form")
	}
	return ctx.JSON(http.StatusOK, messageResponse{Message: "Eliminado"})
}

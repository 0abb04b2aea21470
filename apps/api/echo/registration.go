package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/evasensorial/eva/core/registration"
)

type DraftProfileResponse struct {
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
}

type registrationApi struct {
	svc      *registration.Service
	validate *validator.Validate
}

// registerRegistrationAPI mounts the guardian & teacher portal endpoints; the registration token is their only credential.
func registerRegistrationAPI(g *echo.Group, svc *registration.Service, validate *validator.Validate) {
	api := registrationApi{
		svc:      svc,
		validate: validate,
	}

	rg := g.Group("/registro")
	rg.POST("/participante", api.register)
	rg.GET("/token", api.tokenByDocument)

	eg := rg.Group("/estado/:token")
	eg.GET("", api.state)
	eg.POST("/participante", api.patchDraft)
	eg.POST("/respuestas", api.saveAnswers)
	eg.POST("/finalizar", api.finalize)
}

// Handlers

func (api *registrationApi) register(ctx echo.Context) error {
	var data registration.NewRegistration
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRegistration")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	issued, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering participant")
	}
	return ctx.JSON(http.StatusCreated, issued)
}

func (api *registrationApi) tokenByDocument(ctx echo.Context) error {
	tk, err := api.svc.TokenByDocument(
		ctx.Request().Context(),
		ctx.QueryParam("documento_identificacion"),
		ctx.QueryParam("codigo_acceso"),
	)
	if err != nil {
		return errors.Wrap(err, "finding token by document")
	}
	return ctx.JSON(http.StatusOK, tk)
}

func (api *registrationApi) state(ctx echo.Context) error {
	state, err := api.svc.State(ctx.Request().Context(), ctx.Param("token"))
	if err != nil {
		return errors.Wrap(err, "getting registration state")
	}
	return ctx.JSON(http.StatusOK, state)
}

func (api *registrationApi) patchDraft(ctx echo.Context) error {
	var data registration.PatchDraft
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PatchDraft")
	}

	merged, err := api.svc.PatchDraft(ctx.Request().Context(), ctx.Param("token"), data.Data)
	if err != nil {
		return errors.Wrap(err, "saving draft profile")
	}
	return ctx.JSON(http.StatusOK, DraftProfileResponse{Message: "Guardado", Data: merged})
}

func (api *registrationApi) saveAnswers(ctx echo.Context) error {
	var data registration.SaveAnswers
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SaveAnswers")
	}

	saved, err := api.svc.SaveAnswers(ctx.Request().Context(), ctx.Param("token"), data)
	if err != nil {
		return errors.Wrap(err, "saving draft answers")
	}
	return ctx.JSON(http.StatusOK, saved)
}

func (api *registrationApi) finalize(ctx echo.Context) error {
	finalized, err := api.svc.Finalize(ctx.Request().Context(), ctx.Param("token"))
	if err != nil {
		return errors.Wrap(err, "finalizing registration")
	}
	return ctx.JSON(http.StatusOK, finalized)
}

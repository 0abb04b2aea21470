package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/evasensorial/eva/core/answer"
)

type answerApi struct {
	svc      *answer.Service
	validate *validator.Validate
}

func registerAnswerAPI(
	g *echo.Group,
	authed []echo.MiddlewareFunc,
	svc *answer.Service,
	validate *validator.Validate,
) {
	api := answerApi{
		svc:      svc,
		validate: validate,
	}

	ag := g.Group("/respuestas", authed...)
	ag.GET("/por-codigo/:codigo_acceso", api.queryByCode)
	ag.GET("/por-estudiante/:estudiante_id", api.queryByStudent)
	ag.GET("/por-terapeuta/:terapeuta_id", api.queryByTherapist)
}

func (api *answerApi) bindQuery(ctx echo.Context) (answer.Query, error) {
	var q answer.Query
	if err := ctx.Bind(&q); err != nil {
		return q, errors.Wrap(err, "binding to answer.Query")
	}
	return q, q.Validate(api.validate)
}

// Handlers

func (api *answerApi) queryByCode(ctx echo.Context) error {
	q, err := api.bindQuery(ctx)
	if err != nil {
		return err
	}
	page, err := api.svc.ListByCode(ctx.Request().Context(), ctx.Param("codigo_acceso"), q)
	if err != nil {
		return errors.Wrap(err, "listing answers by code")
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *answerApi) queryByStudent(ctx echo.Context) error {
	studentID, err := pathID(ctx, "estudiante_id")
	if err != nil {
		return err
	}
	q, err := api.bindQuery(ctx)
	if err != nil {
		return err
	}
	page, err := api.svc.ListByStudent(ctx.Request().Context(), studentID, q)
	if err != nil {
		return errors.Wrap(err, "listing answers by student")
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *answerApi) queryByTherapist(ctx echo.Context) error {
	therapistID, err := pathID(ctx, "terapeuta_id")
	if err != nil {
		return err
	}
	rows, err := api.svc.ListByTherapist(ctx.Request().Context(), therapistID)
	if err != nil {
		return errors.Wrap(err, "listing answers by therapist")
	}
	return ctx.JSON(http.StatusOK, rows)
}

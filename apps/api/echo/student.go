package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/evasensorial/eva/core/registration"
	"github.com/evasensorial/eva/core/student"
)

type (
	StudentCreatedResponse struct {
		StudentID  int      `json:"estudiante_id"`
		AccessCode string   `json:"codigo_acceso"`
		Notified   []string `json:"notificando"`
	}

	LinkedResponse struct {
		Message   string `json:"message"`
		StudentID int    `json:"estudiante_id"`
	}
)

type studentApi struct {
	svc      *student.Service
	regSvc   *registration.Service
	validate *validator.Validate
}

func registerStudentAPI(
	g *echo.Group,
	authed []echo.MiddlewareFunc,
	svc *student.Service,
	regSvc *registration.Service,
	validate *validator.Validate,
) {
	api := studentApi{
		svc:      svc,
		regSvc:   regSvc,
		validate: validate,
	}

	sg := g.Group("/estudiantes")

	// un-authed endpoints
	sg.POST("/link/familiar", api.linkGuardian)
	sg.POST("/link/profesor", api.linkTeacher)

	// authed endpoints
	ag := sg.Group("", authed...)
	ag.POST("", api.create)
	ag.GET("", api.query)
	ag.GET("/por-terapeuta/:terapeuta_id", api.queryByTherapist)
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id", api.update)
	ag.DELETE("/:id", api.destroy)
	ag.POST("/:id/reenviar-codigo", api.resendCode)
	ag.POST("/:id/asignar-terapeuta", api.assignTherapist)
}

// Handlers

func (api *studentApi) create(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	var therapistID int
	if t, ok := getContextTherapist(ctx); ok {
		therapistID = t.ID
	}
	created, err := api.svc.Create(ctx.Request().Context(), data, therapistID)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, StudentCreatedResponse{
		StudentID:  created.Student.ID,
		AccessCode: created.Student.AccessCode,
		Notified:   created.Notified,
	})
}

func (api *studentApi) query(ctx echo.Context) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)

	students, err := api.svc.QueryAll(ctx.Request().Context(), ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) queryByTherapist(ctx echo.Context) error {
	therapistID, err := pathID(ctx, "terapeuta_id")
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	students, err := api.svc.QueryByTherapist(ctx.Request().Context(), therapistID, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying students by therapist")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	s, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting student")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) update(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	var data student.UpdateStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.Update(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) destroy(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.JSON(http.StatusOK, messageResponse{Message: "Eliminado"})
}

func (api *studentApi) resendCode(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	var data student.ResendCode
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResendCode")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	resent, err := api.svc.ResendCode(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "resending access code")
	}
	return ctx.JSON(http.StatusOK, resent)
}

func (api *studentApi) assignTherapist(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	var data student.AssignTherapist
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignTherapist")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if _, err := api.svc.AssignTherapist(ctx.Request().Context(), id, data); err != nil {
		return errors.Wrap(err, "assigning therapist")
	}
	return ctx.JSON(http.StatusOK, messageResponse{Message: "Estudiante asignado a un terapeuta de manera correcta"})
}

func (api *studentApi) linkGuardian(ctx echo.Context) error {
	return api.link(ctx, registration.TypeGuardian)
}

func (api *studentApi) linkTeacher(ctx echo.Context) error {
	return api.link(ctx, registration.TypeTeacher)
}

func (api *studentApi) link(ctx echo.Context, typ string) error {
	var data registration.LinkByEmail
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LinkByEmail")
	}
	data.Type = typ
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	studentID, err := api.regSvc.LinkByEmail(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "linking "+typ)
	}
	return ctx.JSON(http.StatusOK, LinkedResponse{Message: "Vinculado", StudentID: studentID})
}

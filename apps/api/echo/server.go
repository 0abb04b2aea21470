package echoapi

import (
	"context"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/evasensorial/eva/core"
	"github.com/evasensorial/eva/core/answer"
	"github.com/evasensorial/eva/core/form"
	"github.com/evasensorial/eva/core/registration"
	"github.com/evasensorial/eva/core/student"
	"github.com/evasensorial/eva/core/therapist"
)

type (
	Options struct {
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		DisableReqLogs bool
		SignalShutdown func()

		TherapistSvc    *therapist.Service
		StudentSvc      *student.Service
		RegistrationSvc *registration.Service
		FormSvc         *form.Service
		AnswerSvc       *answer.Service
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.HideBanner = true
	s.app.Binder = new(strictBinder)
	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.New().String() },
	}))
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{conf.FrontendBaseURL},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.opts.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	api := s.app.Group("/api")
	jwt := middleware.JWTWithConfig(newJWTConfig(conf))
	authed := []echo.MiddlewareFunc{jwt, therapistMiddleware(s.opts.TherapistSvc)}

	registerTherapistAPI(api, authed, s.opts.TherapistSvc, s.opts.Validate, conf)
	registerStudentAPI(api, authed, s.opts.StudentSvc, s.opts.RegistrationSvc, s.opts.Validate)
	registerRegistrationAPI(api, s.opts.RegistrationSvc, s.opts.Validate)
	registerFormAPI(api, authed, s.opts.FormSvc, s.opts.Validate)
	registerAnswerAPI(api, authed, s.opts.AnswerSvc, s.opts.Validate)
}

func (s *server) Start() error {
	return s.app.Start(s.opts.Conf.Server.Address)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "API EVA funcionando")
}

// messageResponse is the body of endpoints that only report an outcome.
type messageResponse struct {
	Message string `json:"message"`
}

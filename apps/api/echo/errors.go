package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/evasensorial/eva/core"
	"github.com/evasensorial/eva/core/therapist"
)

var (
	errUnauthorized       = echo.NewHTTPError(http.StatusUnauthorized, "Token inválido")
	errTokenRequired      = "Token requerido"
	errInvalidCredentials = echo.NewHTTPError(http.StatusUnauthorized, "Credenciales inválidas")
	errInvalidData        = "Datos inválidos"
)

type errorResponse struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var res errorResponse

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				res.Message = errTokenRequired
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			if code == http.StatusUnauthorized && origErr != errInvalidCredentials {
				// invalid or expired jwt
				res.Message = errUnauthorized.Message.(string)
				break
			}
			if m, ok := origErr.Message.(string); ok {
				res.Message = m
			} else {
				res.Message = http.StatusText(code)
			}
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			res.Message = errInvalidData
			res.Fields = make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				res.Fields[vErr.Field()] = vErr.Translate(translator)
			}
		case *core.ValidationError:
			code = http.StatusBadRequest
			res.Message = origErr.Error()
			if len(origErr.Fields) > 0 {
				res.Fields = make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					res.Fields[fErr.Field] = fErr.Error
				}
			}
		case *core.NotFoundError:
			code = http.StatusNotFound
			res.Message = origErr.Error()
		default:
			switch origErr {
			case therapist.ErrEmailExists:
				code = http.StatusConflict
				res.Message = origErr.Error()
			case therapist.ErrInvalidCredentials:
				code = errInvalidCredentials.Code
				res.Message = errInvalidCredentials.Message.(string)
			default: // any other error is a server error
				code = http.StatusInternalServerError
				res.Message = err.Error()

				args := []interface{}{errors.WithStack(err)}
				if t, ok := getContextTherapist(ctx); ok {
					args = append(args, t)
				}
				logger.Error(http.StatusText(code), args...)

				// shutting down...
				if core.IsShutdown(err) && signalShutdown != nil {
					signalShutdown()
				}
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, res)
			}
			if err != nil {
				logger.Error("sending error response", err)
			}
		}
	}
}

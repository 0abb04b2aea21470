package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/evasensorial/eva/core"
	"github.com/evasensorial/eva/core/therapist"
)

// therapistMiddleware loads the therapist behind the JWT into the context.
// Tokens of deleted therapists are rejected.
func therapistMiddleware(svc *therapist.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			t, err := svc.GetByID(ctx.Request().Context(), claims.ID)
			if err != nil {
				if core.IsNotFound(err) {
					return errUnauthorized
				}
				return errors.Wrap(err, "loading context therapist")
			}
			ctx.Set(contextTherapistKey, t)
			return next(ctx)
		}
	}
}

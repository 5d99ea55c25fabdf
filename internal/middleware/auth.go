package middleware

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/imagiseum/gallery/internal/service"
)

// Authenticator resolves an Authorization header into a caller.
type Authenticator interface {
	Authenticate(ctx context.Context, authorization string) (service.Identity, error)
}

// Authenticate rejects the request unless it carries a valid bearer token
// for an existing user. The error is returned unchanged so the HTTP error
// handler renders every token failure as the same 401.
func Authenticate(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, err := auth.Authenticate(c.Request().Context(), c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return err
			}
			SetIdentity(c, id)
			return next(c)
		}
	}
}

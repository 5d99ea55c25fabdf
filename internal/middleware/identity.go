package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/imagiseum/gallery/internal/service"
)

const identityKey = "identity"

// SetIdentity stores the resolved caller on the request context.
func SetIdentity(c echo.Context, id service.Identity) {
	c.Set(identityKey, id)
}

// IdentityFrom returns the caller resolved by Authenticate. ok is false on
// routes that do not authenticate.
func IdentityFrom(c echo.Context) (service.Identity, bool) {
	id, ok := c.Get(identityKey).(service.Identity)
	return id, ok && id.ID != 0
}

// userKey identifies the caller for rate limiting, "anon" when the route is
// public.
func userKey(c echo.Context) string {
	if id, ok := IdentityFrom(c); ok {
		return strconv.FormatUint(id.ID, 10)
	}
	return "anon"
}

package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/imagiseum/gallery/internal/provider"
	"github.com/imagiseum/gallery/internal/service"
	"github.com/imagiseum/gallery/internal/utils"
	"github.com/imagiseum/gallery/internal/validation"
)

// storeTimeout bounds the store calls a single request makes.
const storeTimeout = 5 * time.Second

// Error is a handler failure with the status and message the client sees.
// Err keeps the cause for the server log.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func fail(status int, msg string, cause error) *Error {
	return &Error{Status: status, Message: msg, Err: cause}
}

// ok writes {success:true, ...payload}.
func ok(c echo.Context, status int, payload echo.Map) error {
	body := echo.Map{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	return c.JSON(status, body)
}

// classify maps an error onto the response status and message. Every token
// failure collapses into one 401 so clients cannot tell expiry from a bad
// signature.
func classify(err error) (int, string, map[string]string) {
	var (
		herr *Error
		verr *validation.Error
		eerr *echo.HTTPError
	)
	switch {
	case errors.As(err, &herr):
		return herr.Status, herr.Message, nil
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message, verr.Fields
	case errors.Is(err, service.ErrDuplicateEmail):
		return http.StatusBadRequest, "User with this email already exists", nil
	case errors.Is(err, service.ErrEmailInUse):
		return http.StatusBadRequest, "Email is already in use", nil
	case errors.Is(err, service.ErrPathImmutable):
		return http.StatusBadRequest, "Image path cannot be changed", nil
	case errors.Is(err, service.ErrEmptyPatch):
		return http.StatusBadRequest, "Please provide at least one field to update", nil
	case errors.Is(err, utils.ErrPasswordTooLong):
		return http.StatusBadRequest, "Password must be at most 72 bytes", nil
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password", nil
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized, "Not authorized, invalid or missing token", nil
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "Not authorized to modify this image", nil
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "Not found", nil
	case errors.Is(err, provider.ErrNotConfigured):
		return http.StatusInternalServerError, "Image generation is not configured on the server", nil
	case errors.Is(err, provider.ErrProvider):
		return http.StatusInternalServerError, "Server error generating image", nil
	case errors.As(err, &eerr):
		return eerr.Code, httpErrorMessage(eerr), nil
	default:
		return http.StatusInternalServerError, "Internal server error", nil
	}
}

func httpErrorMessage(e *echo.HTTPError) string {
	switch e.Code {
	case http.StatusNotFound:
		return "Route not found"
	case http.StatusRequestEntityTooLarge:
		return "Request body too large"
	case http.StatusMethodNotAllowed:
		return "Method not allowed"
	}
	if s, ok := e.Message.(string); ok {
		return s
	}
	return http.StatusText(e.Code)
}

// ErrorHandler renders every error returned by a handler or middleware as
// {success:false, message[, errors]}. 5xx causes are logged, never sent.
func ErrorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, msg, fields := classify(err)
		if status >= http.StatusInternalServerError {
			log.Error("request failed",
				"method", c.Request().Method,
				"path", c.Path(),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
				"error", err)
		}

		body := echo.Map{"success": false, "message": msg}
		if len(fields) > 0 {
			body["errors"] = fields
		}
		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			log.Error("write error response", "error", werr)
		}
	}
}

// bindAndValidate decodes the JSON body into dst and runs its schema. Both
// happen before any store access.
func bindAndValidate(c echo.Context, dst any) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, dst); err != nil {
		return fail(http.StatusBadRequest, "Invalid request body", err)
	}
	return c.Validate(dst)
}

// Package router assembles the echo server: global middleware, the route
// table and the capability each route requires.
package router

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/imagiseum/gallery/internal/handler"
	"github.com/imagiseum/gallery/internal/middleware"
	"github.com/imagiseum/gallery/internal/validation"
)

// Capability is what a caller must prove before a route's handler runs.
type Capability int

const (
	// Public routes run for anyone.
	Public Capability = iota
	// Authenticated routes need a valid bearer token for an existing user.
	Authenticated
	// Owner routes need Authenticated; the handler then checks that the
	// caller owns the addressed image before mutating it, after the request
	// body has been validated.
	Owner
)

func (c Capability) String() string {
	switch c {
	case Public:
		return "public"
	case Authenticated:
		return "authenticated"
	case Owner:
		return "owner"
	}
	return "unknown"
}

// Route is one entry of the route table.
type Route struct {
	Method     string
	Path       string
	Capability Capability
	Handler    echo.HandlerFunc
	// Limited routes pass through the rate limiter.
	Limited bool
	// Cached routes are served from the response cache when possible.
	Cached bool
}

// Deps carries everything New wires into the server. Cache and Limiter may
// be nil.
type Deps struct {
	Log       *slog.Logger
	Guard     middleware.Authenticator
	Auth      *handler.AuthHandler
	Images    *handler.ImageHandler
	Tags      *handler.TagHandler
	Health    echo.HandlerFunc
	Cache     *middleware.ResponseCache
	Limiter   *middleware.RateLimiter
	BodyLimit string
	// UploadDir is served under UploadURL when both are set.
	UploadDir string
	UploadURL string
}

// Routes returns the route table.
func Routes(d Deps) []Route {
	return []Route{
		{Method: http.MethodGet, Path: "/healthz", Capability: Public, Handler: d.Health},

		{Method: http.MethodPost, Path: "/api/auth/register", Capability: Public, Handler: d.Auth.Register, Limited: true},
		{Method: http.MethodPost, Path: "/api/auth/login", Capability: Public, Handler: d.Auth.Login, Limited: true},
		{Method: http.MethodGet, Path: "/api/auth/me", Capability: Authenticated, Handler: d.Auth.Me},
		{Method: http.MethodGet, Path: "/api/auth/profile", Capability: Authenticated, Handler: d.Auth.Profile},
		{Method: http.MethodPut, Path: "/api/auth/profile", Capability: Authenticated, Handler: d.Auth.UpdateProfile},
		{Method: http.MethodPost, Path: "/api/auth/logout", Capability: Authenticated, Handler: d.Auth.Logout},

		{Method: http.MethodPost, Path: "/api/images/generate", Capability: Authenticated, Handler: d.Images.Generate, Limited: true},
		{Method: http.MethodPost, Path: "/api/images", Capability: Authenticated, Handler: d.Images.Create},
		{Method: http.MethodGet, Path: "/api/images", Capability: Public, Handler: d.Images.List, Cached: true},
		{Method: http.MethodGet, Path: "/api/images/:id", Capability: Public, Handler: d.Images.Get, Cached: true},
		{Method: http.MethodPut, Path: "/api/images/:id", Capability: Owner, Handler: d.Images.Update},
		{Method: http.MethodDelete, Path: "/api/images/:id", Capability: Owner, Handler: d.Images.Delete},

		{Method: http.MethodGet, Path: "/api/tags", Capability: Public, Handler: d.Tags.Popular, Cached: true},
	}
}

// dispatch builds the middleware chain a route's capability requires. The
// authentication check runs before the rate limiter so limits are keyed by
// caller where one is known.
func dispatch(d Deps, r Route) []echo.MiddlewareFunc {
	var chain []echo.MiddlewareFunc
	switch r.Capability {
	case Authenticated, Owner:
		chain = append(chain, middleware.Authenticate(d.Guard))
	}
	if r.Limited && d.Limiter != nil {
		chain = append(chain, d.Limiter.Middleware())
	}
	if r.Cached && d.Cache != nil {
		chain = append(chain, d.Cache.Middleware())
	}
	return chain
}

// Register adds every route of the table to e.
func Register(e *echo.Echo, d Deps) {
	for _, r := range Routes(d) {
		e.Add(r.Method, r.Path, r.Handler, dispatch(d, r)...)
	}
	if d.UploadDir != "" && d.UploadURL != "" {
		e.Static(d.UploadURL, d.UploadDir)
	}
}

// New creates the echo server with the global middleware and all routes.
func New(d Deps) *echo.Echo {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.BodyLimit == "" {
		d.BodyLimit = "50M"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()
	e.HTTPErrorHandler = handler.ErrorHandler(d.Log)

	e.Use(echomw.RecoverWithConfig(echomw.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			d.Log.Error("panic recovered", "error", err, "stack", string(stack))
			return err
		},
	}))
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(echomw.BodyLimit(d.BodyLimit))

	Register(e, d)
	return e
}

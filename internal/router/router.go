package router // package router defines how HTTP routes are registered for the API

import (
	"log/slog" // request logging
	"strings"  // media prefix handling

	"github.com/google/uuid"                                  // request ids
	"github.com/labstack/echo/v4"                             // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware"           // Echo's bundled middleware
	"github.com/prometheus/client_golang/prometheus/promhttp" // /metrics exposition

	"github.com/iliyamo/recipe-api/internal/handler"    // HTTP handlers
	"github.com/iliyamo/recipe-api/internal/middleware" // JWT, cache, rate limit, metrics
	"github.com/iliyamo/recipe-api/internal/validation" // request DTO validation
)

// Deps carries everything the routes need. Cache and RateLimit may be nil,
// in which case requests pass straight through. DB may be nil when the
// in-memory store is used.
type Deps struct {
	Logger      *slog.Logger
	JWTSecret   string
	DB          handler.Pinger
	Users       *handler.UserHandler
	Recipes     *handler.RecipeHandler
	Tags        *handler.AttributeHandler
	Ingredients *handler.AttributeHandler
	Cache       echo.MiddlewareFunc
	RateLimit   echo.MiddlewareFunc
	MediaRoot   string // served under MediaURL when set (local media driver)
	MediaURL    string
	BodyLimit   string // e.g. "6M"; empty disables the limit
}

func orPassthrough(m echo.MiddlewareFunc) echo.MiddlewareFunc {
	if m == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return m
}

// New builds the Echo instance with global middleware and every route.
func New(d Deps) *echo.Echo {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.Metrics())
	e.Use(requestLogger(d.Logger))
	if d.BodyLimit != "" {
		e.Use(echomw.BodyLimit(d.BodyLimit))
	}

	RegisterRoutes(e, d)
	RegisterUser(e, d)
	RegisterRecipe(e, d)
	return e
}

// requestLogger writes one slog line per request.
func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogRoutePath: true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"route", v.RoutePath,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if uid, ok := middleware.UserID(c); ok {
				attrs = append(attrs, "user_id", uid)
			}
			if v.Error != nil {
				logger.Error("request", append(attrs, "error", v.Error)...)
				return nil
			}
			logger.Info("request", attrs...)
			return nil
		},
	})
}

// RegisterRoutes registers routes that do not require authentication:
// probes, metrics and, for the local media driver, uploaded files.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(d.DB))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	if d.MediaRoot != "" {
		prefix := strings.TrimSuffix(d.MediaURL, "/")
		if prefix == "" {
			prefix = "/media"
		}
		e.Static(prefix, d.MediaRoot)
	}
}

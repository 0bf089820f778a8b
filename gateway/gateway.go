// Package gateway exposes the query engine over HTTP: the TRAPI query
// endpoint plus health and metrics.
package gateway

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/c360/biograph/engine"
	"github.com/c360/biograph/errors"
	"github.com/c360/biograph/health"
	"github.com/c360/biograph/metric"
	"github.com/c360/biograph/trapi"
)

// ErrorBody is the stable error shape for rejected requests
type ErrorBody struct {
	Error       string `json:"error"`
	Description string `json:"description"`
}

// Gateway serves the engine's HTTP surface
type Gateway struct {
	echo    *echo.Echo
	handler *engine.QueryHandler
	monitor *health.Monitor
	logger  *slog.Logger
}

// GatewayDeps holds the gateway's dependencies
type GatewayDeps struct {
	Handler  *engine.QueryHandler
	Monitor  *health.Monitor
	Registry *metric.Registry
	Logger   *slog.Logger
}

// New creates a gateway and registers its routes
func New(deps GatewayDeps) *Gateway {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	monitor := deps.Monitor
	if monitor == nil {
		monitor = health.NewMonitor()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	g := &Gateway{
		echo:    e,
		handler: deps.Handler,
		monitor: monitor,
		logger:  logger,
	}

	e.POST("/v1/query", g.query)
	e.GET("/health", g.health)
	if deps.Registry != nil {
		e.GET("/metrics", echo.WrapHandler(deps.Registry.Handler()))
	}
	return g
}

// Start serves until the listener fails or Shutdown is called
func (g *Gateway) Start(addr string) error {
	return g.echo.Start(addr)
}

// Shutdown stops the server gracefully
func (g *Gateway) Shutdown(ctx context.Context) error {
	return g.echo.Shutdown(ctx)
}

// Echo exposes the router for tests
func (g *Gateway) Echo() *echo.Echo { return g.echo }

func (g *Gateway) query(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorBody{
			Error:       "InvalidQueryGraph",
			Description: "request body unreadable",
		})
	}

	req, err := trapi.ParseRequest(body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorBody{
			Error:       "InvalidQueryGraph",
			Description: err.Error(),
		})
	}

	resp, err := g.handler.Lookup(c.Request().Context(), req)
	if err != nil {
		if errors.IsInvalid(err) {
			return c.JSON(http.StatusBadRequest, ErrorBody{
				Error:       "InvalidQueryGraph",
				Description: err.Error(),
			})
		}
		// Anything else degraded to an empty answer upstream; reaching
		// here means the handler itself failed.
		g.logger.Error("query handler failed", "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorBody{
			Error:       "InternalError",
			Description: "query execution failed",
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func (g *Gateway) health(c echo.Context) error {
	status := g.monitor.Snapshot()
	code := http.StatusOK
	if status.State == health.StateUnhealthy {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}

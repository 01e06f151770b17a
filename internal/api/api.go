package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	middleware "github.com/oapi-codegen/echo-middleware"
	"go.uber.org/zap"

	"github.com/rryowa/devtasks/internal/controller"
	"github.com/rryowa/devtasks/internal/service"
	"github.com/rryowa/devtasks/internal/util"
)

type API struct {
	server          *echo.Echo
	controller      *controller.Controller
	gate            *service.AuthGate
	log             *zap.SugaredLogger
	gracefulTimeout time.Duration
	cleanupFuncs    []func()
}

func NewAPI(
	c *controller.Controller,
	gate *service.AuthGate,
	sc *util.ServerConfig,
	l *zap.SugaredLogger,
	cleanupFuncs []func(),
) (*API, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Server.Addr = sc.ServerAddr
	e.Server.WriteTimeout = sc.WriteTimeout
	e.Server.ReadTimeout = sc.ReadTimeout
	e.Server.IdleTimeout = sc.IdleTimeout
	e.HTTPErrorHandler = ErrorHandler(l)

	a := &API{
		server:          e,
		controller:      c,
		gate:            gate,
		log:             l,
		gracefulTimeout: sc.GracefulTimeout,
		cleanupFuncs:    cleanupFuncs,
	}

	if err := a.setupRoutes(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *API) setupRoutes() error {
	swagger, err := controller.GetSwagger()
	if err != nil {
		return fmt.Errorf("failed to load OpenAPI specification: %w", err)
	}
	swagger.Servers = nil

	a.server.Use(echomiddleware.Recover())
	a.server.Use(echomiddleware.RequestID())
	a.server.Use(echomiddleware.RequestLoggerWithConfig(GetLoggerMiddlewareConfig(a.log)))

	g := a.server.Group("/api")
	g.Use(middleware.OapiRequestValidatorWithOptions(swagger, &middleware.Options{
		ErrorHandler: validationErrorHandler,
	}))

	c := a.controller
	g.GET("/ping", c.CheckServer)
	g.POST("/register", c.Register)
	g.POST("/login", c.Login)
	g.GET("/refreshToken", c.RefreshToken)
	g.POST("/refresh", c.RefreshToken)
	g.POST("/logout", c.Logout)

	g.GET("/tasks", RequireAuth(a.gate, c.ListTasks))
	g.POST("/tasks", RequireAuth(a.gate, c.CreateTask))
	g.PUT("/tasks", RequireAuth(a.gate, c.UpdateTask))
	g.DELETE("/tasks", RequireAuth(a.gate, c.DeleteTask))

	return nil
}

// Handler exposes the router, mainly for httptest.
func (a *API) Handler() http.Handler {
	return a.server
}

func (a *API) Run(ctxBackground context.Context) {
	ctx, stop := signal.NotifyContext(ctxBackground, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.ListenGracefulShutdown(ctx)
}

func (a *API) ListenGracefulShutdown(ctx context.Context) {
	go func() {
		err := a.server.Start(a.server.Server.Addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()
	a.log.Infof("Listening on: %s", a.server.Server.Addr)

	<-ctx.Done()
	a.log.Info("Shutting down server...")

	// in-flight requests get gracefulTimeout to finish, then connections are dropped
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.log.Errorf("server shutdown: %v", err)
		if err := a.server.Close(); err != nil {
			a.log.Errorf("server close: %v", err)
		}
	} else {
		a.log.Info("server shutdown completed")
	}

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}
}

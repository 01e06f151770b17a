package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/rryowa/devtasks/internal/service"
	"github.com/rryowa/devtasks/internal/util"
)

const (
	statusSuccess = "success"

	msgInvalidRegister = "Invalid register JSON"
	msgInvalidLogin    = "Invalid login JSON"
	msgInvalidTask     = "Invalid task data"
	msgInvalidPayload  = "Invalid payload"
)

var payloadMessages = map[string]string{
	"/api/register": msgInvalidRegister,
	"/api/login":    msgInvalidLogin,
	"/api/tasks":    msgInvalidTask,
}

// PayloadMessage is the client message for a rejected request body on route path.
func PayloadMessage(path string) string {
	if msg, ok := payloadMessages[path]; ok {
		return msg
	}
	return msgInvalidPayload
}

type Controller struct {
	zapLogger   *zap.SugaredLogger
	authService *service.AuthService
	taskService *service.TaskService
	cookie      *util.CookieConfig
	refreshTTL  time.Duration
	validate    *validator.Validate
}

func NewController(
	logger *zap.SugaredLogger,
	authService *service.AuthService,
	taskService *service.TaskService,
	cookie *util.CookieConfig,
	refreshTTL time.Duration,
) *Controller {
	return &Controller{
		zapLogger:   logger,
		authService: authService,
		taskService: taskService,
		cookie:      cookie,
		refreshTTL:  refreshTTL,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// (GET /api/ping).
func (c *Controller) CheckServer(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, "ok")
}

// bind decodes and validates the body, turning any failure into a 400 with msg.
func (c *Controller) bind(ctx echo.Context, dst any, msg string) error {
	if err := ctx.Bind(dst); err != nil {
		c.zapLogger.Debugw("Failed to bind request", "uri", ctx.Request().RequestURI, "error", err)
		return util.NewResponseError(http.StatusBadRequest, "%s", msg)
	}
	if err := c.validate.Struct(dst); err != nil {
		c.zapLogger.Debugw("Request validation failed", "uri", ctx.Request().RequestURI, "error", err)
		return util.NewResponseError(http.StatusBadRequest, "%s", msg)
	}
	return nil
}

// payloadError keeps the route message for service-side payload rejections.
func payloadError(err error, msg string) error {
	if errors.Is(err, service.ErrInvalidPayload) {
		return util.NewResponseError(http.StatusBadRequest, "%s", msg)
	}
	return err
}

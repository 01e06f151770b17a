package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/rryowa/devtasks/internal/controller"
	"github.com/rryowa/devtasks/internal/models"
	"github.com/rryowa/devtasks/internal/service"
	"github.com/rryowa/devtasks/internal/util"
)

const UserContextKey = "user"

// ProtectedHandler can only be reached with an identity verified by the AuthGate.
type ProtectedHandler func(c echo.Context, user models.Identity) error

// RequireAuth puts the gate in front of h. On failure h is never called.
func RequireAuth(gate *service.AuthGate, h ProtectedHandler) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := gate.Authenticate(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return err
		}

		c.Set(UserContextKey, user.Email)
		return h(c, user)
	}
}

// validationErrorHandler maps OpenAPI body rejections to the route's payload message.
func validationErrorHandler(c echo.Context, err *echo.HTTPError) error {
	if err.Code == http.StatusBadRequest {
		return util.NewResponseError(http.StatusBadRequest, "%s", controller.PayloadMessage(c.Path()))
	}
	return err
}

// GetLoggerMiddlewareConfig never logs headers, so tokens and cookies stay out of the logs.
func GetLoggerMiddlewareConfig(log *zap.SugaredLogger) echomiddleware.RequestLoggerConfig {
	return echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogError:     true,
		LogLatency:   true,
		LogRemoteIP:  true,
		HandleError:  true,
		LogRequestID: true,

		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := []interface{}{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"remote_ip", v.RemoteIP,
			}
			if v.RequestID != "" {
				fields = append(fields, "request_id", v.RequestID)
			}
			if user, ok := c.Get(UserContextKey).(string); ok {
				fields = append(fields, "user", user)
			}
			if v.Error != nil {
				fields = append(fields, "error", v.Error)
			}

			if v.Status >= http.StatusInternalServerError {
				log.Errorw("Request", fields...)
			} else {
				log.Infow("Request", fields...)
			}
			return nil
		},
	}
}

package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/rryowa/devtasks/internal/models"
	"github.com/rryowa/devtasks/internal/service"
	"github.com/rryowa/devtasks/internal/util"
)

type errorMapping struct {
	target error
	status int
	msg    string
}

// Order matters: the first match wins.
//
//nolint:gochecknoglobals // static table
var errorMappings = []errorMapping{
	{service.ErrInvalidPayload, http.StatusBadRequest, "Invalid payload"},
	{service.ErrAlreadyExists, http.StatusConflict, "User already exists"},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "Email or password incorrect"},
	{service.ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
	{service.ErrMalformedAuthHeader, http.StatusUnauthorized, "Please use Bearer Token"},
	{service.ErrInvalidToken, http.StatusUnauthorized, "Invalid auth token"},
	{service.ErrInvalidRefreshToken, http.StatusNotAcceptable, "Invalid Refresh Token"},
	{service.ErrTaskNotFound, http.StatusNotFound, "Task ID not found"},
	{service.ErrUpstreamUnavailable, http.StatusServiceUnavailable, "Service temporarily unavailable"},
}

func ErrorHandler(log *zap.SugaredLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, msg := resolveError(err)
		if status >= http.StatusInternalServerError {
			log.Errorw("HTTP error", "error", err, "status", status, "uri", c.Request().RequestURI)
		}

		if err := c.JSON(status, models.StatusResponse{Status: "error", Message: msg}); err != nil {
			log.Errorw("failed to write json response", "error", err)
		}
	}
}

func resolveError(err error) (int, string) {
	if respErr, ok := util.AsResponseError(err); ok {
		return respErr.Status, respErr.Msg
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.msg
		}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Code >= http.StatusInternalServerError {
			return he.Code, http.StatusText(he.Code)
		}
		return he.Code, fmt.Sprint(he.Message)
	}

	return http.StatusInternalServerError, "internal server error"
}

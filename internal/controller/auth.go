package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rryowa/devtasks/internal/models"
	"github.com/rryowa/devtasks/internal/service"
)

// (POST /api/register).
func (c *Controller) Register(ctx echo.Context) error {
	var req models.RegisterRequest
	if err := c.bind(ctx, &req, msgInvalidRegister); err != nil {
		return err
	}

	pair, err := c.authService.Register(ctx.Request().Context(), req.Email, req.Password)
	if err != nil {
		return payloadError(err, msgInvalidRegister)
	}

	return c.respondWithPair(ctx, pair, "Account created")
}

// (POST /api/login).
func (c *Controller) Login(ctx echo.Context) error {
	var req models.LoginRequest
	if err := c.bind(ctx, &req, msgInvalidLogin); err != nil {
		return err
	}

	pair, err := c.authService.Login(ctx.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.respondWithPair(ctx, pair, "Login successfully")
}

// (GET /api/refreshToken), (POST /api/refresh).
func (c *Controller) RefreshToken(ctx echo.Context) error {
	cookie, err := ctx.Cookie(models.RefreshTokenCookie)
	if err != nil || cookie.Value == "" {
		return service.ErrInvalidRefreshToken
	}

	pair, err := c.authService.Refresh(ctx.Request().Context(), cookie.Value)
	if err != nil {
		return err
	}

	return c.respondWithPair(ctx, pair, "Token refreshed")
}

// (POST /api/logout).
func (c *Controller) Logout(ctx echo.Context) error {
	cookie, err := ctx.Cookie(models.RefreshTokenCookie)
	if err != nil || cookie.Value == "" {
		return service.ErrInvalidRefreshToken
	}

	if err := c.authService.Logout(ctx.Request().Context(), cookie.Value); err != nil {
		return err
	}

	ctx.SetCookie(c.refreshCookie("", -1))
	return ctx.JSON(http.StatusOK, models.StatusResponse{Status: statusSuccess, Message: "Logged out"})
}

func (c *Controller) respondWithPair(ctx echo.Context, pair models.TokenPair, msg string) error {
	ctx.SetCookie(c.refreshCookie(pair.RefreshToken, int(c.refreshTTL.Seconds())))
	return ctx.JSON(http.StatusCreated, models.TokenResponse{
		Status:  statusSuccess,
		Message: msg,
		Token:   pair.AccessToken,
	})
}

func (c *Controller) refreshCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     models.RefreshTokenCookie,
		Value:    value,
		Path:     models.RefreshCookiePath,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.cookie.Secure,
		SameSite: c.cookie.SameSite,
	}
}

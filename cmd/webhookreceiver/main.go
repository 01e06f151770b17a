// Command webhookreceiver prints security events posted by the API. For local development.
package main

import (
	"errors"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/rryowa/devtasks/internal/service"
	"github.com/rryowa/devtasks/internal/util"
)

const defaultAddr = ":9090"

func main() {
	logger := util.NewZapLogger("info")

	addr := os.Getenv("WEBHOOK_RECEIVER_ADDR")
	if addr == "" {
		addr = defaultAddr
	}

	e := echo.New()
	e.HideBanner = true
	e.POST("/", func(c echo.Context) error {
		var ev service.SecurityEvent
		if err := c.Bind(&ev); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Error parsing JSON")
		}

		logger.Infow("Received webhook",
			"event", ev.Event,
			"email", ev.Email,
			"occurred_at", ev.OccurredAt,
		)
		return c.String(http.StatusOK, "Webhook received!")
	})

	logger.Infof("Webhook receiver listening on %s", addr)
	if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("Failed to start server: %v", err)
	}
}

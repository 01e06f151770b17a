package controller

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rryowa/devtasks/internal/models"
)

// Task handlers receive the caller as an already verified identity.

// (GET /api/tasks).
func (c *Controller) ListTasks(ctx echo.Context, user models.Identity) error {
	tasks, err := c.taskService.List(ctx.Request().Context(), user)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, tasks)
}

// (POST /api/tasks).
func (c *Controller) CreateTask(ctx echo.Context, user models.Identity) error {
	var req models.CreateTaskRequest
	if err := c.bind(ctx, &req, msgInvalidTask); err != nil {
		return err
	}

	task, err := c.taskService.Create(ctx.Request().Context(), user, req.TaskName)
	if err != nil {
		return payloadError(err, msgInvalidTask)
	}
	return ctx.JSON(http.StatusCreated, task)
}

// (PUT /api/tasks).
func (c *Controller) UpdateTask(ctx echo.Context, user models.Identity) error {
	var req models.UpdateTaskRequest
	if err := c.bind(ctx, &req, msgInvalidTask); err != nil {
		return err
	}

	task, err := c.taskService.UpdateStatus(ctx.Request().Context(), user, req.TaskID, req.TaskStatus)
	if err != nil {
		return payloadError(err, msgInvalidTask)
	}
	return ctx.JSON(http.StatusCreated, task)
}

// (DELETE /api/tasks).
func (c *Controller) DeleteTask(ctx echo.Context, user models.Identity) error {
	var req models.DeleteTaskRequest
	if err := c.bind(ctx, &req, msgInvalidTask); err != nil {
		return err
	}

	if err := c.taskService.Delete(ctx.Request().Context(), user, req.TaskID); err != nil {
		return payloadError(err, msgInvalidTask)
	}

	return ctx.JSON(http.StatusOK, models.StatusResponse{
		Status:  statusSuccess,
		Message: fmt.Sprintf("Task #%d deleted", req.TaskID),
	})
}

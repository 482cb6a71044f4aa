package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v5"

	"github.com/datallboy/gomodpack/internal/app"
	"github.com/datallboy/gomodpack/internal/store"
)

const maxListLimit = 500

type RunsController struct {
	App *app.Context
}

// List returns the most recent install runs, newest first.
func (ctrl *RunsController) List(c *echo.Context) error {
	if ctrl.App.Store == nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "run history is disabled"})
	}

	limit := store.DefaultListLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
		}
		limit = min(n, maxListLimit)
	}

	runs, err := ctrl.App.Store.ListRuns(c.Request().Context(), limit)
	if err != nil {
		ctrl.App.Logger.Error("failed to list runs: %v", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to list runs"})
	}

	out := RunList{Runs: make([]RunSummary, 0, len(runs))}
	for _, r := range runs {
		out.Runs = append(out.Runs, newRunSummary(r))
	}
	out.Count = len(out.Runs)

	return c.JSON(http.StatusOK, out)
}

// Get returns one run with every item outcome and its manual download link.
func (ctrl *RunsController) Get(c *echo.Context) error {
	if ctrl.App.Store == nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "run history is disabled"})
	}

	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing id"})
	}

	run, err := ctrl.App.Store.GetRun(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			return c.JSON(http.StatusNotFound, ErrorResponse{Error: "run not found"})
		}
		ctrl.App.Logger.Error("failed to load run %s: %v", id, err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to load run"})
	}

	return c.JSON(http.StatusOK, RunDetail{Run: run, Counts: run.Counts()})
}

func Health(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/antibyte/minipl/pkg/auth"
	"github.com/antibyte/minipl/pkg/logger"
	"github.com/antibyte/minipl/pkg/shared"
	"github.com/antibyte/minipl/pkg/store"

	"github.com/labstack/echo/v4"
)

// RunRequest is the body of POST /api/run.
type RunRequest struct {
	Source string `json:"source"`
	Stdin  string `json:"stdin"`
}

// RunResponse reports one finished run. A failed program still answers
// 200 with Error set.
type RunResponse struct {
	RunID      string            `json:"run_id,omitempty"`
	Stdout     string            `json:"stdout"`
	Result     string            `json:"result"`
	Globals    map[string]any    `json:"globals"`
	Error      *shared.ErrorInfo `json:"error,omitempty"`
	DurationMS int64             `json:"duration_ms"`
}

// ProgramRequest is the body of PUT /api/programs/:name.
type ProgramRequest struct {
	Source string `json:"source"`
}

func (s *Server) runHandler(c echo.Context) error {
	var req RunRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request format")
	}
	if err := s.settings.CheckSource(req.Source); err != nil {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	}

	ctx := c.Request().Context()
	outcome := shared.Run(ctx, s.settings, req.Source, strings.NewReader(req.Stdin))

	resp := RunResponse{
		Stdout:     outcome.Stdout,
		Result:     outcome.Result.String(),
		Globals:    outcome.Globals,
		Error:      shared.NewErrorInfo(outcome.Err),
		DurationMS: outcome.Duration.Milliseconds(),
	}

	if s.cfg.RecordRuns {
		run := &store.Run{
			Username: auth.UsernameFromContext(ctx),
			Source:   req.Source,
			Stdin:    req.Stdin,
			Stdout:   resp.Stdout,
			Result:   resp.Result,
			Globals:  resp.Globals,
			Duration: outcome.Duration,
		}
		if resp.Error != nil {
			run.ErrorKind = resp.Error.Kind
			run.ErrorMessage = resp.Error.Message
		}
		id, err := s.store.RecordRun(run)
		if err != nil {
			logger.Error(logger.AreaDatabase, "failed to record run: %v", err)
		}
		resp.RunID = id
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) listRunsHandler(c echo.Context) error {
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive number")
		}
		limit = n
	}

	owner := auth.UsernameFromContext(c.Request().Context())
	runs, err := s.store.ListRunsByUser(owner, limit)
	if err != nil {
		return err
	}
	if runs == nil {
		runs = []*store.Run{}
	}
	return c.JSON(http.StatusOK, runs)
}

func (s *Server) getRunHandler(c echo.Context) error {
	owner := auth.UsernameFromContext(c.Request().Context())
	run, err := s.store.GetRun(c.Param("id"))
	if errors.Is(err, store.ErrNotFound) || (err == nil && run.Username != owner) {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, run)
}

func (s *Server) listProgramsHandler(c echo.Context) error {
	names, err := s.store.ListPrograms(auth.UsernameFromContext(c.Request().Context()))
	if err != nil {
		return err
	}
	if names == nil {
		names = []string{}
	}
	return c.JSON(http.StatusOK, names)
}

func (s *Server) getProgramHandler(c echo.Context) error {
	owner := auth.UsernameFromContext(c.Request().Context())
	program, err := s.store.GetProgram(owner, c.Param("name"))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "program not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, program)
}

func (s *Server) saveProgramHandler(c echo.Context) error {
	var req ProgramRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request format")
	}
	if err := s.settings.CheckSource(req.Source); err != nil {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	}

	owner := auth.UsernameFromContext(c.Request().Context())
	name := c.Param("name")
	if err := s.store.SaveProgram(owner, name, req.Source); err != nil {
		return err
	}
	program, err := s.store.GetProgram(owner, name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, program)
}

func (s *Server) healthHandler(c echo.Context) error {
	if !s.store.Healthy(c.Request().Context()) {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.terminal.ClientCount(),
	})
}

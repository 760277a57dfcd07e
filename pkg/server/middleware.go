package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/antibyte/minipl/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// requestLogger writes one server log entry per request.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogLatency:  true,
		LogURI:      true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error == nil {
				logger.ServerInfo("%s %s %d %s", v.Method, v.URI, v.Status, v.Latency)
			} else {
				logger.ServerWarn("%s %s %d %s: %v", v.Method, v.URI, v.Status, v.Latency, v.Error)
			}
			return nil
		},
	})
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Message string `json:"message"`
}

// errorHandler renders errors returned by handlers as ErrorResponse.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		_ = c.JSON(he.Code, ErrorResponse{Message: fmt.Sprintf("%v", he.Message)})
		return
	}

	logger.ServerError("unhandled error on %s: %v", c.Request().URL.Path, err)
	_ = c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal server error"})
}

package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// JSONErrorHandler renders every error as an ErrorResponse. Echo errors keep
// their status, deadline errors become 504, everything else is logged as 500.
func JSONErrorHandler(logger *logrus.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		switch {
		case errors.As(err, &he):
			_ = c.JSON(he.Code, ErrorResponse{
				Error: http.StatusText(he.Code),
				Code:  he.Code,
			})
		case errors.Is(err, context.DeadlineExceeded):
			_ = c.JSON(http.StatusGatewayTimeout, ErrorResponse{
				Error: "upstream timeout",
				Code:  http.StatusGatewayTimeout,
			})
		default:
			logger.WithError(err).WithField("path", c.Path()).Error("unhandled request error")
			_ = c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error: "internal server error",
				Code:  http.StatusInternalServerError,
			})
		}
	}
}

package sandbox

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// envelope is the single-resource response body.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message string      `json:"message,omitempty"`
}

type failure struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

const invalidMessage = "The given data was invalid."

func respond(c echo.Context, status int, data interface{}, message string) error {
	return c.JSON(status, envelope{Success: true, Data: data, Message: message})
}

func validationFailed(c echo.Context, errs map[string][]string) error {
	return c.JSON(http.StatusUnprocessableEntity, failure{Message: invalidMessage, Errors: errs})
}

func notFoundError() error {
	return echo.NewHTTPError(http.StatusNotFound, "The requested resource was not found.")
}

// lookupError maps ErrNotFound to a 404 and passes anything else through.
func lookupError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return notFoundError()
	}
	return err
}

// ErrorHandler renders every error as {success:false, message}. Errors that
// are not *echo.HTTPError become a 500 and are logged.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		message := "Server error. Please try again later."

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if m, ok := he.Message.(string); ok && m != "" {
				message = m
			}
		} else {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).Str("request_id", rid).Str("path", c.Request().URL.Path).Msg("unhandled error")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(code)
		} else {
			writeErr = c.JSON(code, failure{Message: message})
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Msg("write error response")
		}
	}
}

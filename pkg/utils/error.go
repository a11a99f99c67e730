package utils

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	ErrAgentUnreachable     = errors.New("build agent unreachable")
	ErrBadRequest           = errors.New("bad request")
	ErrDuplicateCompletion  = errors.New("duplicate completion notification")
	ErrInvalidConfiguration = errors.New("invalid build configuration")
	ErrNotFound             = errors.New("not found")
	ErrStorageUnavailable   = errors.New("storage unavailable")
	ErrTerminalJob          = errors.New("build job is terminal")
	ErrUnknownBuildJob      = errors.New("unknown build job")
)

type DetailedError interface {
	error
	Details() string
}

type detailedError struct {
	err     error
	details string
}

// NewDetailedError wraps err with a human readable detail string.
func NewDetailedError(err error, details string) error {
	return &detailedError{err: err, details: details}
}

func (e *detailedError) Error() string {
	return fmt.Sprintf("%v: %s", e.err, e.details)
}

func (e *detailedError) Details() string {
	return e.details
}

func (e *detailedError) Unwrap() error {
	return e.err
}

// HttpError converts known sentinel errors to echo HTTP errors.
func HttpError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUnknownBuildJob):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrInvalidConfiguration):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrTerminalJob), errors.Is(err, ErrDuplicateCompletion):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrStorageUnavailable), errors.Is(err, ErrAgentUnreachable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return err
}

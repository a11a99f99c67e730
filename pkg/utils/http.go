package utils

import (
	"errors"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/edulab/buildci/pkg/log"
)

// HttpLogger is an echo middleware that traces requests.
func HttpLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		log.Tracef("%4s %s %v", c.Request().Method, c.Request().URL, c.Response().Status)
		return err
	}
}

// ParseHttpUrl parses a string of the form tcp://<host>[:<port>] and
// returns the listen address. The port defaults to 8080.
func ParseHttpUrl(urlstr string) (string, error) {
	uri, err := url.Parse(urlstr)
	if err != nil {
		return "", err
	}

	if uri.Port() == "" {
		uri.Host += ":8080"
	}

	switch uri.Scheme {
	case "tcp":
		return uri.Host, nil
	default:
		return "", errors.New("unsupported protocol: " + uri.Scheme)
	}
}

package buildlog

import (
	"bufio"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// NewHttpHandler registers log read and purge endpoints.
func NewHttpHandler(recorder *Recorder, r *echo.Echo) {
	r.GET("/api/jobs/:id/logs", func(c echo.Context) error {
		lines, err := recorder.Read(c.Param("id"))
		if err != nil {
			return c.String(http.StatusNotFound, err.Error())
		}

		c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextPlain)
		c.Response().WriteHeader(http.StatusOK)
		writer := bufio.NewWriter(c.Response())

		for _, line := range lines {
			ts := line.Time.Local()
			out := fmt.Sprintf(
				"%s.%06d %s\n",
				ts.Format("2006-01-02 15:04:05"),
				ts.Nanosecond()/1000,
				line.Message)

			if _, err := writer.WriteString(out); err != nil {
				return c.String(http.StatusInternalServerError, err.Error())
			}
		}

		return writer.Flush()
	})

	r.DELETE("/api/jobs/:id/logs", func(c echo.Context) error {
		if err := recorder.Purge(c.Param("id")); err != nil {
			return c.String(http.StatusNotFound, err.Error())
		}
		return c.NoContent(http.StatusNoContent)
	})
}

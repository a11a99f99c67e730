package dispatcher

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// NewHttpHandler registers the metrics endpoint.
func NewHttpHandler(d *Dispatcher, r *echo.Echo) {
	r.GET("/metrics", func(c echo.Context) error {
		stats := d.Statistics()

		metrics := fmt.Sprintln("# TYPE buildci_agents gauge")
		metrics += fmt.Sprintln("# HELP buildci_agents The number of registered build agents.")
		metrics += fmt.Sprintf("buildci_agents %d\n", stats.Agents)

		metrics += fmt.Sprintln("# TYPE buildci_jobs_queued gauge")
		metrics += fmt.Sprintln("# HELP buildci_jobs_queued The number of jobs waiting for an agent.")
		metrics += fmt.Sprintf("buildci_jobs_queued %d\n", stats.QueuedJobs)

		metrics += fmt.Sprintln("# TYPE buildci_jobs_running gauge")
		metrics += fmt.Sprintln("# HELP buildci_jobs_running The number of jobs assigned or running.")
		metrics += fmt.Sprintf("buildci_jobs_running %d\n", stats.RunningJobs)

		metrics += fmt.Sprintln("# TYPE buildci_jobs_completed_total counter")
		metrics += fmt.Sprintln("# HELP buildci_jobs_completed_total The total number of completed jobs.")
		metrics += fmt.Sprintf("buildci_jobs_completed_total %d\n", stats.CompletedJobs)

		metrics += fmt.Sprintln("# TYPE buildci_jobs_failed_total counter")
		metrics += fmt.Sprintln("# HELP buildci_jobs_failed_total The total number of failed jobs.")
		metrics += fmt.Sprintf("buildci_jobs_failed_total %d\n", stats.FailedJobs)

		metrics += fmt.Sprintln("# TYPE buildci_jobs_timed_out_total counter")
		metrics += fmt.Sprintln("# HELP buildci_jobs_timed_out_total The total number of timed out jobs.")
		metrics += fmt.Sprintf("buildci_jobs_timed_out_total %d\n", stats.TimedOutJobs)

		metrics += fmt.Sprintln("# TYPE buildci_jobs_cancelled_total counter")
		metrics += fmt.Sprintln("# HELP buildci_jobs_cancelled_total The total number of cancelled jobs.")
		metrics += fmt.Sprintf("buildci_jobs_cancelled_total %d\n", stats.CancelledJobs)

		metrics += fmt.Sprintln("# TYPE buildci_dispatch_errors_total counter")
		metrics += fmt.Sprintln("# HELP buildci_dispatch_errors_total The total number of failed dispatch attempts.")
		metrics += fmt.Sprintf("buildci_dispatch_errors_total %d\n", stats.DispatchErrors)

		return c.String(http.StatusOK, metrics)
	})
}

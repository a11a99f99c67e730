package main

import (
	"fmt"
	"log"
	"sort"

	"github.com/spf13/cobra"

	"github.com/edulab/buildci/pkg/dispatcher"
)

var jobListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List tracked build jobs",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := DefaultDeadlineContext()
		defer cancel()

		var jobs []dispatcher.JobInfo
		if err := getJson(ctx, "/api/jobs", &jobs); err != nil {
			log.Fatal(err)
		}

		sort.Slice(jobs, func(i, j int) bool {
			if jobs[i].QueuePosition != jobs[j].QueuePosition {
				return jobs[i].QueuePosition < jobs[j].QueuePosition
			}
			return jobs[i].ID < jobs[j].ID
		})

		for _, job := range jobs {
			fmt.Printf("%s  %-10s", job.ID, job.Status)
			if job.QueuePosition > 0 {
				fmt.Printf("  queue: %d", job.QueuePosition)
			}
			if job.Agent != "" {
				fmt.Printf("  agent: %s", job.Agent)
			}
			fmt.Printf("  %s\n", job.Name)
		}
	},
}

func init() {
	jobCmd.AddCommand(jobListCmd)
}

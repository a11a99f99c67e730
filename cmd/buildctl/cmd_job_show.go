package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/edulab/buildci/pkg/store"
)

type jobDetails struct {
	Job    *store.BuildJob `json:"job"`
	Result *store.Result   `json:"result"`
}

var jobShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a build job and its result",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := DefaultDeadlineContext()
		defer cancel()

		var details jobDetails
		if err := getJson(ctx, "/api/jobs/"+args[0], &details); err != nil {
			log.Fatal(err)
		}

		job := details.Job
		fmt.Println(job.ID)
		fmt.Printf("  Name:          %s\n", job.Name)
		fmt.Printf("  Status:        %s\n", job.Status)
		fmt.Printf("  Course:        %d\n", job.CourseID)
		fmt.Printf("  Exercise:      %d\n", job.ExerciseID)
		fmt.Printf("  Participation: %d\n", job.ParticipationID)
		fmt.Printf("  Commit:        %s\n", job.CommitHash)
		fmt.Printf("  Image:         %s\n", job.DockerImage)
		fmt.Printf("  Enqueued:      %s\n", job.EnqueuedAt)
		if job.BuildStartDate != nil {
			fmt.Printf("  Started:       %s\n", job.BuildStartDate)
		}
		if job.BuildCompletionDate != nil {
			fmt.Printf("  Completed:     %s\n", job.BuildCompletionDate)
		}
		if job.BuildAgentAddress != nil {
			fmt.Printf("  Agent:         %s\n", *job.BuildAgentAddress)
		}

		if details.Result != nil {
			fmt.Println("  Result")
			fmt.Printf("    Successful: %v\n", details.Result.Successful)
			fmt.Printf("    Tasks:      %d/%d\n", details.Result.SuccessfulTasks, details.Result.TotalTasks)
			if details.Result.TimedOut {
				fmt.Println("    Timed out")
			}
		}
	},
}

func init() {
	jobCmd.AddCommand(jobShowCmd)
}

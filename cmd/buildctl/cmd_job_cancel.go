package main

import (
	"log"

	"github.com/spf13/cobra"
)

var jobCancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel build jobs",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := DefaultDeadlineContext()
		defer cancel()

		for _, arg := range args {
			if err := deleteRequest(ctx, "/api/jobs/"+arg); err != nil {
				log.Fatal(err)
			}
			log.Println("cancelled", arg)
		}
	},
}

func init() {
	jobCmd.AddCommand(jobCancelCmd)
}

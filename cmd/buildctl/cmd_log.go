package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log [id]",
	Short: "Print the build log of a job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := DefaultDeadlineContext()
		defer cancel()

		text, err := getText(ctx, "/api/jobs/"+args[0]+"/logs")
		if err != nil {
			log.Fatal(err)
		}
		fmt.Print(text)
	},
}

func init() {
	rootCmd.AddCommand(logCmd)
}

package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/edulab/buildci/pkg/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats [exercise-id]",
	Short: "Show average build durations for an exercise",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := DefaultDeadlineContext()
		defer cancel()

		var averages store.AverageDurations
		if err := getJson(ctx, "/api/exercises/"+args[0]+"/build-statistics", &averages); err != nil {
			log.Fatal(err)
		}

		fmt.Printf("Builds:  %d\n", averages.JobCount)
		printSeconds := func(name string, value *float64) {
			if value != nil {
				fmt.Printf("%s %.2fs\n", name, *value)
			}
		}
		printSeconds("Setup:  ", averages.AgentSetupSeconds)
		printSeconds("Test:   ", averages.TestSeconds)
		printSeconds("SCA:    ", averages.StaticCodeAnalysisSeconds)
		printSeconds("Total:  ", averages.TotalSeconds)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

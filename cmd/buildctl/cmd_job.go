package main

import (
	"github.com/spf13/cobra"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Build job commands",
}

func init() {
	rootCmd.AddCommand(jobCmd)
}

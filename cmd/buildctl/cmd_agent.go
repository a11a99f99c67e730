package main

import (
	"github.com/spf13/cobra"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Build agent commands",
}

func init() {
	rootCmd.AddCommand(agentCmd)
}

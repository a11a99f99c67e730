package main

import (
	"log"

	"github.com/spf13/cobra"
)

var agentRemoveCmd = &cobra.Command{
	Use:   "rm [address]",
	Short: "Unregister build agents",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := DefaultDeadlineContext()
		defer cancel()

		for _, arg := range args {
			if err := deleteRequest(ctx, "/api/agents/"+arg); err != nil {
				log.Fatal(err)
			}
			log.Println("unregistered", arg)
		}
	},
}

func init() {
	agentCmd.AddCommand(agentRemoveCmd)
}

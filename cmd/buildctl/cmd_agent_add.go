package main

import (
	"log"

	"github.com/spf13/cobra"
)

var agentAddCmd = &cobra.Command{
	Use:   "add [address]",
	Short: "Register a build agent",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := DefaultDeadlineContext()
		defer cancel()

		capacity, err := cmd.Flags().GetInt("capacity")
		if err != nil {
			panic(err)
		}

		body := map[string]any{
			"address":  args[0],
			"capacity": capacity,
		}
		if err := postJson(ctx, "/api/agents", body, nil); err != nil {
			log.Fatal(err)
		}
		log.Println("registered", args[0])
	},
}

func init() {
	agentAddCmd.Flags().IntP("capacity", "c", 0, "Concurrent job capacity (0 uses the server default)")
	agentCmd.AddCommand(agentAddCmd)
}

package main

import (
	"fmt"
	"log"
	"sort"

	"github.com/spf13/cobra"

	"github.com/edulab/buildci/pkg/dispatcher"
)

var agentListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List registered build agents",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := DefaultDeadlineContext()
		defer cancel()

		var agents []dispatcher.AgentInfo
		if err := getJson(ctx, "/api/agents", &agents); err != nil {
			log.Fatal(err)
		}

		sort.Slice(agents, func(i, j int) bool {
			return agents[i].Address < agents[j].Address
		})

		for index, agent := range agents {
			fmt.Printf("%d: %s  busy: %d/%d\n",
				index+1,
				agent.Address,
				agent.Busy,
				agent.Capacity,
			)
		}
	},
}

func init() {
	agentCmd.AddCommand(agentListCmd)
}

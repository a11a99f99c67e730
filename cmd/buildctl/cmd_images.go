package main

import (
	"fmt"
	"log"
	"sort"

	"github.com/spf13/cobra"

	"github.com/edulab/buildci/pkg/store"
)

var imagesCmd = &cobra.Command{
	Use:   "images",
	Short: "List docker images unused for a given duration",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := DefaultDeadlineContext()
		defer cancel()

		unusedFor, err := cmd.Flags().GetString("unused-for")
		if err != nil {
			panic(err)
		}

		var images []store.DockerImageBuild
		if err := getJson(ctx, "/api/images/stale?unused_for="+unusedFor, &images); err != nil {
			log.Fatal(err)
		}

		sort.Slice(images, func(i, j int) bool {
			return images[i].LastUsed.Before(images[j].LastUsed)
		})

		for _, image := range images {
			fmt.Printf("%s  last used: %s\n", image.Image, image.LastUsed)
		}
	},
}

func init() {
	imagesCmd.Flags().StringP("unused-for", "u", "168h", "Report images unused for at least this duration")
	rootCmd.AddCommand(imagesCmd)
}

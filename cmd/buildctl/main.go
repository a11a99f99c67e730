package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "buildctl",
	Short: "Build orchestrator control command",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		viper.SetConfigName("buildctl.yaml")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("/etc/buildci/")
		viper.AddConfigPath("$HOME/.config/buildci")
		viper.AddConfigPath(".")
		viper.ReadInConfig()

		viper.SetEnvPrefix("buildci")
		viper.AutomaticEnv()

		config, err := ParseConfig()
		if err != nil {
			log.Fatal(err)
		}
		configData = *config
	},
}

var configData = ControlConfig{}

func main() {
	rootCmd.PersistentFlags().StringP("orchestrator-uri", "s", "http://orchestrator:8080", "Orchestrator service URI")
	viper.BindPFlag("orchestrator_uri", rootCmd.PersistentFlags().Lookup("orchestrator-uri"))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

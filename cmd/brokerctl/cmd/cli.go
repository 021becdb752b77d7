// Package cmd provides the command-line interface for brokerctl.
package cmd

import (
	"log"

	cfg "github.com/npc-engine/npc-engine/core/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type clientConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

var (
	cfgFile  string
	config   clientConfig
	endpoint string

	// Verbose enables verbose output when set to true.
	Verbose bool

	cliCmd = &cobra.Command{
		Use:   "brokerctl",
		Short: "Administer a running broker",
		Long:  `A control utility for starting, stopping and inspecting packages managed by a broker.`,
	}
)

// Execute runs the root command.
func Execute() {
	if err := cliCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	addCommands()

	cliCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config", "",
		"config file (default is brokerctl.yaml in ., $HOME/.config/npc-engine or /etc/npc-engine)",
	)
	cliCmd.PersistentFlags().StringVar(
		&endpoint,
		"endpoint", "ipc://@npc-engine-self",
		"broker endpoint to connect to (default is the broker's default internal endpoint)",
	)
	cliCmd.PersistentFlags().BoolVarP(&Verbose, "verbose", "v", false, "verbose output")

	if err := viper.BindPFlag("verbose", cliCmd.PersistentFlags().Lookup("verbose")); err != nil {
		log.Fatal(err)
	}
	viper.SetDefault("verbose", false)
}

func addCommands() {
	cliCmd.AddCommand(statusCmd)
	cliCmd.AddCommand(startCmd)
	cliCmd.AddCommand(stopCmd)
	cliCmd.AddCommand(restartCmd)
	cliCmd.AddCommand(metadataCmd)
	cliCmd.AddCommand(checkDependencyCmd)
	cliCmd.AddCommand(callCmd)
	cliCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables if set. The --endpoint
// flag, when left at its default, is overridden by a configured value.
func initConfig() {
	if cfgFile != "" {
		v := viper.New()
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			log.Fatalf("error reading config file: %s\n", err)
		}
		if err := v.Unmarshal(&config); err != nil {
			log.Fatalf("error decoding config file: %s\n", err)
		}
	} else if err := cfg.LoadConfig("brokerctl", &config); err != nil {
		log.Fatalf("error reading config file: %s\n", err)
	}

	if config.Endpoint != "" && !cliCmd.PersistentFlags().Changed("endpoint") {
		endpoint = config.Endpoint
	}
}

package cmd

import (
	"log"

	"github.com/npc-engine/npc-engine/core"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of brokerctl",
	Run: func(_ *cobra.Command, _ []string) {
		log.Println(core.VERSION)
	},
}

// Command brokerctl is the admin CLI for a running broker daemon.
package main

import (
	"github.com/npc-engine/npc-engine/cmd/brokerctl/cmd"
)

func main() {
	cmd.Execute()
}

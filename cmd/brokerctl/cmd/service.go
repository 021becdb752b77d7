package cmd

import (
	"encoding/json"
	"log"

	"github.com/npc-engine/npc-engine/svcclient"

	"github.com/spf13/cobra"
)

var (
	statusCmd = &cobra.Command{
		Use:   "status <id>",
		Short: "Report a package's current state",
		Args:  cobra.ExactArgs(1),
		Run:   status,
	}
	startCmd = &cobra.Command{
		Use:   "start <id>",
		Short: "Start a package",
		Args:  cobra.ExactArgs(1),
		Run:   start,
	}
	stopCmd = &cobra.Command{
		Use:   "stop <id>",
		Short: "Stop a package",
		Args:  cobra.ExactArgs(1),
		Run:   stop,
	}
	restartCmd = &cobra.Command{
		Use:   "restart <id>",
		Short: "Restart a package",
		Args:  cobra.ExactArgs(1),
		Run:   restart,
	}
	metadataCmd = &cobra.Command{
		Use:   "metadata [id]",
		Short: "Print metadata for one package, or every discovered package",
		Args:  cobra.MaximumNArgs(1),
		Run:   printMetadata,
	}
	checkDependencyCmd = &cobra.Command{
		Use:   "check-dependency <id> <dependency>",
		Short: "Declare that id depends on dependency and check the graph for cycles",
		Args:  cobra.ExactArgs(2),
		Run:   checkDependency,
	}
)

func newControlClient() *svcclient.ControlClient {
	client, err := svcclient.NewControlClient(endpoint)
	if err != nil {
		log.Fatalf("connecting to %s: %v", endpoint, err)
	}
	return client
}

func status(_ *cobra.Command, args []string) {
	client := newControlClient()
	defer client.Close()

	state, err := client.GetServiceStatus(args[0])
	if err != nil {
		log.Fatal(err)
	}
	log.Println(state)
}

func start(_ *cobra.Command, args []string) {
	client := newControlClient()
	defer client.Close()

	if err := client.StartService(args[0]); err != nil {
		log.Fatal(err)
	}
	log.Printf("%s starting\n", args[0])
}

func stop(_ *cobra.Command, args []string) {
	client := newControlClient()
	defer client.Close()

	if err := client.StopService(args[0]); err != nil {
		log.Fatal(err)
	}
	log.Printf("%s stopped\n", args[0])
}

func restart(_ *cobra.Command, args []string) {
	client := newControlClient()
	defer client.Close()

	if err := client.RestartService(args[0]); err != nil {
		log.Fatal(err)
	}
	log.Printf("%s restarted\n", args[0])
}

func printMetadata(_ *cobra.Command, args []string) {
	client := newControlClient()
	defer client.Close()

	var out interface{}
	var err error
	if len(args) == 1 {
		out, err = client.GetServiceMetadata(args[0])
	} else {
		out, err = client.GetServicesMetadata()
	}
	if err != nil {
		log.Fatal(err)
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		log.Fatal(err)
	}
	log.Println(string(encoded))
}

func checkDependency(_ *cobra.Command, args []string) {
	client := newControlClient()
	defer client.Close()

	if err := client.CheckDependency(args[0], args[1]); err != nil {
		log.Fatal(err)
	}
	log.Println("no cycle detected")
}

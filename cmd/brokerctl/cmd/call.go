package cmd

import (
	"encoding/json"
	"log"

	"github.com/npc-engine/npc-engine/svcclient"

	"github.com/spf13/cobra"
)

var callCmd = &cobra.Command{
	Use:   "call <target> <method> [param ...]",
	Short: "Send an arbitrary JSON-RPC request to a package",
	Long:  "Send an arbitrary JSON-RPC request to a package. Each param is parsed as JSON, falling back to a raw string on parse failure.",
	Args:  cobra.MinimumNArgs(2),
	Run:   call,
}

func call(_ *cobra.Command, args []string) {
	target, method, raw := args[0], args[1], args[2:]

	params := make([]interface{}, 0, len(raw))
	for _, p := range raw {
		var v interface{}
		if err := json.Unmarshal([]byte(p), &v); err != nil {
			v = p
		}
		params = append(params, v)
	}

	stub, err := svcclient.Create(endpoint, target)
	if err != nil {
		log.Fatal(err)
	}
	defer stub.Close()

	result, err := stub.Call(method, params...)
	if err != nil {
		log.Fatal(err)
	}
	log.Println(string(result))
}

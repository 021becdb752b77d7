// Command echoworker is a minimal worker binary: its one method, "echo",
// returns its single argument unchanged. It exists to exercise the Worker
// Loop contract end to end and as a template for new package implementations.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/npc-engine/npc-engine/workerloop"
)

func init() {
	workerloop.Register("echo", newEcho)
}

type echo struct{}

func newEcho(_ string) (workerloop.Handler, error) {
	return echo{}, nil
}

func (echo) Methods() map[string]workerloop.MethodFunc {
	return map[string]workerloop.MethodFunc{
		"echo": func(params json.RawMessage) (interface{}, error) {
			var args []interface{}
			if len(params) > 0 {
				if err := json.Unmarshal(params, &args); err != nil {
					return nil, err
				}
			}
			if len(args) == 0 {
				return nil, nil
			}
			return args[0], nil
		},
	}
}

func main() {
	if len(os.Args) != 4 {
		fmt.Fprintf(os.Stderr, "usage: %s <path> <uri> <id>\n", os.Args[0])
		os.Exit(1)
	}

	path, uri, id := os.Args[1], os.Args[2], os.Args[3]
	if err := workerloop.Run(path, uri, id); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

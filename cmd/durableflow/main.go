// Command durableflow runs the durable-workflow orchestrator: the worker
// loop, the webhook completion endpoint, and the embedding API, wired
// together via the cobra command tree in cmd/durableflow/cmd.
package main

import (
	"fmt"
	"os"

	"github.com/jdziat/durableflow/cmd/durableflow/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

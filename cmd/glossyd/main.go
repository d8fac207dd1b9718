// Command glossyd runs the Glossy flooding daemon: it serves Prometheus
// metrics and periodically originates or relays floods according to its
// configuration.
package main

import (
	"fmt"
	"os"

	"github.com/ystepanoff/glossy/cmd/glossyd/commands"
)

func main() {
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

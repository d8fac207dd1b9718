// Package commands implements the glossyd CLI: run, flood, version.
package commands

import (
	"github.com/spf13/cobra"
)

var configPath string

// Root returns the top-level glossyd command.
func Root() *cobra.Command {
	root := &cobra.Command{
		Use:   "glossyd",
		Short: "Glossy flooding daemon",
		Long:  "glossyd runs the Glossy flooding protocol engine: it serves Prometheus metrics and originates or relays floods according to its configuration.",
	}

	root.PersistentFlags().StringVar(&configPath, "config", "glossyd.yml", "path to configuration file")

	root.AddCommand(runCmd())
	root.AddCommand(floodCmd())
	root.AddCommand(versionCmd())

	return root
}

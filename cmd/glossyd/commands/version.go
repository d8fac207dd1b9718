package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	appversion "github.com/ystepanoff/glossy/internal/version"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), appversion.Full("glossyd"))
			return nil
		},
	}
}

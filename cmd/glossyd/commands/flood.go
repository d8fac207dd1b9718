package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ystepanoff/glossy/internal/glossy"
	"github.com/ystepanoff/glossy/internal/sim"
)

func floodCmd() *cobra.Command {
	var (
		nodes       int
		initiatorID uint16
		payloadStr  string
		withSync    bool
		nTxMax      uint8
		nSlots      int
	)

	cmd := &cobra.Command{
		Use:   "flood",
		Short: "Run one simulated flood across a virtual network and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			if nodes < 2 {
				return fmt.Errorf("flood: --nodes must be >= 2")
			}

			params := glossy.DefaultParams()
			net := sim.NewNetwork(nodes, params, slog.Default())

			results, err := net.RunFlood(initiatorID, []byte(payloadStr), withSync, nTxMax, nSlots)
			if err != nil {
				return fmt.Errorf("flood: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		},
	}

	cmd.Flags().IntVar(&nodes, "nodes", 5, "number of simulated nodes")
	cmd.Flags().Uint16Var(&initiatorID, "initiator", 1, "ID of the initiating node")
	cmd.Flags().StringVar(&payloadStr, "payload", "hello", "payload to flood")
	cmd.Flags().BoolVar(&withSync, "with-sync", true, "distribute a time reference with this flood")
	cmd.Flags().Uint8Var(&nTxMax, "n-tx-max", 3, "maximum retransmissions per node (0 = unbounded)")
	cmd.Flags().IntVar(&nSlots, "n-slots", 10, "number of slots to run the simulated flood for")

	return cmd
}

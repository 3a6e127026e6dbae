package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/opsched/pkg/api"
)

func newSubmitCmd() *cobra.Command {
	var partitionID int
	var urgent bool

	cmd := &cobra.Command{
		Use:   "submit <key> <value>",
		Short: "Submit a key/value operation to the grid",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			resp, err := client.Post("/api/v1/operations", api.OperationRequest{
				PartitionID: partitionID,
				Key:         key,
				Value:       value,
				Urgent:      urgent,
			})
			if err != nil {
				return fmt.Errorf("submit operation: %w", err)
			}

			fmt.Printf("accepted (request %s)\n", resp.RequestID)
			return nil
		},
	}

	cmd.Flags().IntVar(&partitionID, "partition", -1, "Target partition (negative routes to the generic pool)")
	cmd.Flags().BoolVar(&urgent, "urgent", false, "Jump the normal queue")

	return cmd
}

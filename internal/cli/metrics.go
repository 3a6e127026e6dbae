package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/opsched/pkg/api"
)

func newMetricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Show the scheduler's live queue and worker counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/api/v1/metrics")
			if err != nil {
				return fmt.Errorf("get metrics: %w", err)
			}

			var snap api.MetricsSnapshot
			if err := json.Unmarshal(resp.Data, &snap); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			fmt.Printf("Partition threads: %d\n", snap.PartitionThreadCount)
			fmt.Printf("Generic threads:   %d\n", snap.GenericThreadCount)
			fmt.Printf("Running ops:       %d\n", snap.RunningOperationCount)
			fmt.Printf("Normal queue size: %d\n", snap.OperationExecutorQueueSize)
			fmt.Printf("Priority queue:    %d\n", snap.PriorityOperationExecutorQueueSize)
			fmt.Printf("Response queue:    %d\n", snap.ResponseQueueSize)
			return nil
		},
	}
}

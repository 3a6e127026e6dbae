package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/opsched/pkg/api"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show grid node health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/healthz")
			if err != nil {
				return fmt.Errorf("get health: %w", err)
			}

			var h api.HealthResponse
			if err := json.Unmarshal(resp.Data, &h); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			fmt.Printf("Status:    %s\n", h.Status)
			fmt.Printf("Scheduler: %s\n", h.Scheduler)
			fmt.Printf("Go:        %s\n", h.GoVersion)
			fmt.Printf("Uptime:    %s\n", h.Uptime)
			return nil
		},
	}
}

package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/opsched/internal/logging"
)

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking the GRIDCTL_SERVER
// env var first.
func defaultServer() string {
	if s := os.Getenv("GRIDCTL_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the gridctl CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gridctl",
		Short: "gridctl — operate a grid node's scheduler from the command line",
		Long:  "gridctl submits operations and inspects scheduler health and metrics on a running grid node.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLogger(logging.ParseLevel(flagLogLevel), flagLogFormat)
			client = NewClient(flagServer, logger)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "grid node URL (or GRIDCTL_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newSubmitCmd(),
		newStatusCmd(),
		newMetricsCmd(),
	)

	return root
}

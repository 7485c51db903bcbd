package queuectl

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/architeacher/svc-msg-queue/internal/runtime"
)

// newServeCommand constructs the `serve` subcommand, which runs the HTTP service and the
// reservation sweeper until SIGINT or SIGTERM.
func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the queue service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for flag, env := range map[string]string{
				"backend": "QUEUE_BACKEND",
				"queue":   "QUEUE_ID",
				"label":   "QUEUE_LABEL",
				"sender":  "QUEUE_SENDER_ID",
			} {
				if value, _ := cmd.Flags().GetString(flag); value != "" {
					if err := os.Setenv(env, value); err != nil {
						return err
					}
				}
			}

			runtime.New().Run()

			return nil
		},
	}
}

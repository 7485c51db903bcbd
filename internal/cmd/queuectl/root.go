// Package queuectl contains the cobra commands of the queuectl CLI.
package queuectl

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/architeacher/svc-msg-queue/internal/config"
	"github.com/architeacher/svc-msg-queue/internal/runtime"
	"github.com/architeacher/svc-msg-queue/pkg/queue"
)

type (
	// Session is an open connection to the configured queue.
	Session interface {
		Queue() queue.Queue
		Sweep(ctx context.Context) map[string][]string
		Close(ctx context.Context)
	}

	// Connector opens a Session. Logs are written to logOutput.
	Connector func(ctx context.Context, logOutput io.Writer, overrides func(cfg *config.ServiceConfig)) (Session, error)
)

// RuntimeConnector opens sessions through runtime.NewClient.
func RuntimeConnector(ctx context.Context, logOutput io.Writer, overrides func(cfg *config.ServiceConfig)) (Session, error) {
	client, err := runtime.NewClient(ctx, logOutput, overrides)
	if err != nil {
		return nil, err
	}

	return client, nil
}

// NewRootCommand constructs the queuectl command tree.
func NewRootCommand(connect Connector) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "queuectl",
		Short: "Message queue CLI",
		Long: `queuectl operates on the queue selected by QUEUE_BACKEND and QUEUE_ID.

Message Lifecycle:
  available → [pull --reservation] → reserved → [delete] → deleted
                                         ↓ [release | timeout]
                                     available

Every command prints JSON on stdout; logs go to stderr.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("backend", "", "Queue backend: sysv|redis|postgres|amqp (default $QUEUE_BACKEND)")
	rootCmd.PersistentFlags().String("queue", "", "Queue id (default $QUEUE_ID)")
	rootCmd.PersistentFlags().String("label", "", "Queue label (default $QUEUE_LABEL)")
	rootCmd.PersistentFlags().String("sender", "", "Sender id stamped on put messages (default $QUEUE_SENDER_ID)")

	rootCmd.AddCommand(
		newPutCommand(connect),
		newPullCommand(connect),
		newPeekCommand(connect),
		newDeleteCommand(connect),
		newReleaseCommand(connect),
		newSubscribeCommand(connect),
		newUnsubscribeCommand(connect),
		newSubscriptionsCommand(connect),
		newSweepCommand(connect),
		newServeCommand(),
	)

	return rootCmd
}

// withQueue opens a session honoring the global flags, runs fn and closes the session.
func withQueue(cmd *cobra.Command, connect Connector, fn func(q queue.Queue) error) error {
	return withSession(cmd, connect, func(s Session) error {
		return fn(s.Queue())
	})
}

func withSession(cmd *cobra.Command, connect Connector, fn func(s Session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	session, err := connect(ctx, cmd.ErrOrStderr(), configOverrides(cmd))
	if err != nil {
		return err
	}
	defer session.Close(context.WithoutCancel(ctx))

	return fn(session)
}

func configOverrides(cmd *cobra.Command) func(cfg *config.ServiceConfig) {
	backend, _ := cmd.Flags().GetString("backend")
	queueID, _ := cmd.Flags().GetString("queue")
	label, _ := cmd.Flags().GetString("label")
	sender, _ := cmd.Flags().GetString("sender")

	if backend == "" && queueID == "" && label == "" && sender == "" {
		return nil
	}

	return func(cfg *config.ServiceConfig) {
		if backend != "" {
			cfg.Queue.Backend = backend
		}
		if queueID != "" {
			cfg.Queue.ID = queueID
		}
		if label != "" {
			cfg.Queue.Label = label
		}
		if sender != "" {
			cfg.Queue.SenderID = sender
		}
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}

	return items
}

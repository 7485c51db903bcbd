package queuectl

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/architeacher/svc-msg-queue/pkg/queue"
)

// newPutCommand constructs the `put` subcommand.
func newPutCommand(connect Connector) *cobra.Command {
	putCmd := &cobra.Command{
		Use:   "put <body>",
		Short: "Put a message on the queue",
		Long: `Put a message on the queue. A body that parses as JSON is stored as the decoded value,
anything else as a string.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, _ := cmd.Flags().GetString("category")

			return withQueue(cmd, connect, func(q queue.Queue) error {
				var opts []queue.PutOption
				if category != "" {
					opts = append(opts, queue.WithCategory(category))
				}

				accepted, err := q.Put(cmd.Context(), parseBody(args[0]), opts...)
				if err != nil {
					return err
				}

				return printJSON(cmd, map[string]any{"accepted": accepted})
			})
		},
	}
	putCmd.Flags().String("category", "", "Message category, fanned out to matching subscribers")

	return putCmd
}

// newPullCommand constructs the `pull` subcommand.
func newPullCommand(connect Connector) *cobra.Command {
	pullCmd := &cobra.Command{
		Use:   "pull",
		Short: "Pull messages, removing or reserving them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := readOptions(cmd)
			if err != nil {
				return err
			}

			reservation, _ := cmd.Flags().GetDuration("reservation")
			if reservation < 0 {
				return fmt.Errorf("invalid --reservation %s: must not be negative", reservation)
			}
			if reservation > 0 {
				opts = append(opts, queue.WithReservation(reservation))
			}

			blocking, _ := cmd.Flags().GetBool("blocking")
			opts = append(opts, queue.WithBlocking(blocking))

			return withQueue(cmd, connect, func(q queue.Queue) error {
				msgs, err := q.Pull(cmd.Context(), opts...)
				if err != nil {
					return err
				}

				return printJSON(cmd, orEmpty(msgs))
			})
		},
	}
	addReadFlags(pullCmd)
	pullCmd.Flags().Duration("reservation", 0, "Reserve pulled messages for this long instead of removing them")
	pullCmd.Flags().Bool("blocking", false, "Wait until at least one message is available")

	return pullCmd
}

// newPeekCommand constructs the `peek` subcommand.
func newPeekCommand(connect Connector) *cobra.Command {
	peekCmd := &cobra.Command{
		Use:   "peek",
		Short: "List messages without removing them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := readOptions(cmd)
			if err != nil {
				return err
			}

			if raw, _ := cmd.Flags().GetString("status"); raw != "" {
				status, err := queue.ParseStatus(raw)
				if err != nil {
					return err
				}

				opts = append(opts, queue.WithStatus(status))
			}

			return withQueue(cmd, connect, func(q queue.Queue) error {
				msgs, err := q.Peek(cmd.Context(), opts...)
				if err != nil {
					return err
				}

				return printJSON(cmd, orEmpty(msgs))
			})
		},
	}
	addReadFlags(peekCmd)
	peekCmd.Flags().String("status", "", "Message status: available|reserved|deleted")

	return peekCmd
}

// newDeleteCommand constructs the `delete` subcommand.
func newDeleteCommand(connect Connector) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete reserved messages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQueue(cmd, connect, func(q queue.Queue) error {
				ids, err := q.Delete(cmd.Context(), args...)
				if err != nil {
					return err
				}

				return printJSON(cmd, map[string]any{"ids": orEmpty(ids)})
			})
		},
	}
}

// newReleaseCommand constructs the `release` subcommand.
func newReleaseCommand(connect Connector) *cobra.Command {
	return &cobra.Command{
		Use:   "release <id>...",
		Short: "Make reserved messages available again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQueue(cmd, connect, func(q queue.Queue) error {
				ids, err := q.Release(cmd.Context(), args...)
				if err != nil {
					return err
				}

				return printJSON(cmd, map[string]any{"ids": orEmpty(ids)})
			})
		},
	}
}

// newSweepCommand constructs the `sweep` subcommand.
func newSweepCommand(connect Connector) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Release every reservation past its timeout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, connect, func(s Session) error {
				return printJSON(cmd, s.Sweep(cmd.Context()))
			})
		},
	}
}

func addReadFlags(cmd *cobra.Command) {
	cmd.Flags().Int("limit", queue.Unbounded, "Maximum number of messages, -1 for no limit")
	cmd.Flags().String("subscriber", "", "Read the copies delivered to this subscriber")
}

func readOptions(cmd *cobra.Command) ([]queue.ReadOption, error) {
	limit, _ := cmd.Flags().GetInt("limit")
	if limit < queue.Unbounded {
		return nil, fmt.Errorf("invalid --limit %d", limit)
	}

	opts := []queue.ReadOption{queue.WithLimit(limit)}

	if subscriber, _ := cmd.Flags().GetString("subscriber"); subscriber != "" {
		opts = append(opts, queue.WithSubscriber(subscriber))
	}

	return opts, nil
}

func parseBody(raw string) any {
	var body any
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return raw
	}

	return body
}

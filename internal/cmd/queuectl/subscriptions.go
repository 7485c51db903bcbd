package queuectl

import (
	"github.com/spf13/cobra"

	"github.com/architeacher/svc-msg-queue/pkg/queue"
)

// newSubscribeCommand constructs the `subscribe` subcommand.
func newSubscribeCommand(connect Connector) *cobra.Command {
	subscribeCmd := &cobra.Command{
		Use:   "subscribe <subscriber-id>",
		Short: "Create or extend a subscription",
		Long: `Create a subscription, or merge the given categories and exceptions into an existing one.
A subscription without categories receives every category except its exceptions.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			label, _ := cmd.Flags().GetString("label")
			categories, _ := cmd.Flags().GetStringSlice("category")
			exceptions, _ := cmd.Flags().GetStringSlice("exception")

			return withQueue(cmd, connect, func(q queue.Queue) error {
				if err := q.Subscribe(cmd.Context(), args[0], label, categories, exceptions); err != nil {
					return err
				}

				return printSubscriptions(cmd, q, args[0])
			})
		},
	}
	subscribeCmd.Flags().String("label", "", "Subscription label")
	subscribeCmd.Flags().StringSlice("category", nil, "Category pattern to receive (repeat or comma separated)")
	subscribeCmd.Flags().StringSlice("exception", nil, "Category pattern to exclude (repeat or comma separated)")

	return subscribeCmd
}

// newUnsubscribeCommand constructs the `unsubscribe` subcommand.
func newUnsubscribeCommand(connect Connector) *cobra.Command {
	unsubscribeCmd := &cobra.Command{
		Use:   "unsubscribe <subscriber-id>",
		Short: "Remove categories from a subscription, or the whole subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var categories []string
			if cmd.Flags().Changed("category") {
				categories, _ = cmd.Flags().GetStringSlice("category")
			}

			return withQueue(cmd, connect, func(q queue.Queue) error {
				if err := q.Unsubscribe(cmd.Context(), args[0], categories); err != nil {
					return err
				}

				return printSubscriptions(cmd, q, args[0])
			})
		},
	}
	unsubscribeCmd.Flags().StringSlice("category", nil, "Category pattern to remove; omit to remove the subscription")

	return unsubscribeCmd
}

// newSubscriptionsCommand constructs the `subscriptions` subcommand.
func newSubscriptionsCommand(connect Connector) *cobra.Command {
	return &cobra.Command{
		Use:   "subscriptions [subscriber-id]",
		Short: "List subscriptions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var subscriberID string
			if len(args) == 1 {
				subscriberID = args[0]
			}

			return withQueue(cmd, connect, func(q queue.Queue) error {
				return printSubscriptions(cmd, q, subscriberID)
			})
		},
	}
}

func printSubscriptions(cmd *cobra.Command, q queue.Queue, subscriberID string) error {
	subs, err := q.Subscriptions(cmd.Context(), subscriberID)
	if err != nil {
		return err
	}

	return printJSON(cmd, orEmpty(subs))
}

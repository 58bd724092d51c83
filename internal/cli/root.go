// Package cli wires the workbox command tree: queue operations, worker
// lifecycle, outbox relay, webhook management and queue configuration.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/Aliikhatami94/workbox/internal/store"
)

func NewRootCmd(st *store.Store) *cobra.Command {
	root := &cobra.Command{
		Use:   "workbox",
		Short: "Background job queue with outbox relay and webhook delivery",
	}

	root.AddCommand(
		NewEnqueueCmd(st),
		NewListCmd(st),
		NewStatusCmd(st),
		NewResetCmd(st),
	)

	worker := NewWorkerRootCmd()
	worker.AddCommand(NewWorkerStartCmd(st), NewWorkerStopCmd())
	root.AddCommand(worker)

	dlq := NewDLQRootCmd()
	dlq.AddCommand(NewDLQListCmd(st), NewDLQRetryCmd(st))
	root.AddCommand(dlq)

	cfg := NewConfigRootCmd()
	cfg.AddCommand(NewConfigGetCmd(st), NewConfigSetCmd(st), NewConfigListCmd(st))
	root.AddCommand(cfg)

	ob := NewOutboxRootCmd()
	ob.AddCommand(NewOutboxTickCmd(st))
	root.AddCommand(ob)

	wh := NewWebhookRootCmd()
	wh.AddCommand(NewWebhookSubscribeCmd(st), NewWebhookPublishCmd(st), NewWebhookListCmd(st))
	root.AddCommand(wh)

	return root
}

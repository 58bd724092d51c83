package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aliikhatami94/workbox/internal/outbox"
	"github.com/Aliikhatami94/workbox/internal/store"
)

func NewOutboxRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "outbox",
		Short: "Operate the transactional outbox",
	}
}

func NewOutboxTickCmd(st *store.Store) *cobra.Command {
	var topics []string

	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Relay the next pending outbox message into the job queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			tick := outbox.NewTick(st.Outbox(), st.Jobs(), slog.Default(), topics...)
			if err := tick(context.Background()); err != nil {
				return err
			}
			fmt.Println("Tick complete.")
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&topics, "topic", nil, "restrict the relay to these topics")
	return cmd
}

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aliikhatami94/workbox/internal/store"
)

func NewResetCmd(st *store.Store) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear all jobs and DLQ entries (development only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			if err := st.ResetQueue(ctx); err != nil {
				return fmt.Errorf("failed to clear jobs: %w", err)
			}
			if err := st.ResetDLQ(ctx); err != nil {
				return fmt.Errorf("failed to clear DLQ: %w", err)
			}
			if !all {
				fmt.Println("Queue and DLQ cleared.")
				return nil
			}

			if err := st.ResetOutbox(ctx); err != nil {
				return fmt.Errorf("failed to clear outbox: %w", err)
			}
			if err := st.ResetInbox(ctx); err != nil {
				return fmt.Errorf("failed to clear inbox: %w", err)
			}
			fmt.Println("Queue, DLQ, outbox and inbox cleared.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "also clear the outbox and inbox tables")
	return cmd
}

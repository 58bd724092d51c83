package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aliikhatami94/workbox/internal/store"
)

func NewStatusCmd(st *store.Store) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := st.QueueStatus(context.Background())
			if err != nil {
				return err
			}
			fmt.Println("Queue Status:")
			for _, state := range []store.JobState{store.StateReady, store.StateScheduled, store.StateLeased, store.StateDead} {
				fmt.Printf("  %-10s %d\n", state, stats[state])
			}
			return nil
		},
	}
}

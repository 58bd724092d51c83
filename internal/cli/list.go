package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Aliikhatami94/workbox/internal/store"
)

func NewListCmd(st *store.Store) *cobra.Command {
	var state string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs in the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := st.ListJobs(context.Background())
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			shown := 0
			for _, j := range jobs {
				s := store.StateOf(&j, now)
				if state != "" && string(s) != state {
					continue
				}
				shown++
				fmt.Printf("%s | %-9s | attempts=%d/%d | %s | enqueued %s\n",
					j.ID, s, j.Attempts, j.MaxAttempts, j.Name, humanize.Time(j.CreatedAt))
			}
			if shown == 0 {
				fmt.Println("No jobs found.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "Filter by job state (ready,scheduled,leased)")
	return cmd
}

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aliikhatami94/workbox/internal/store"
)

func NewDLQListCmd(st *store.Store) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List jobs in the dead letter queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := st.ListDLQ(context.Background())
			if err != nil {
				return err
			}

			if len(jobs) == 0 {
				fmt.Println("No jobs in DLQ.")
				return nil
			}

			for _, j := range jobs {
				fmt.Printf("%s | attempts=%d/%d | %s | last error: %s\n",
					j.ID, j.Attempts, j.MaxAttempts, j.Name, j.LastError)
			}
			return nil
		},
	}
}

package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Aliikhatami94/workbox/internal/store"
)

func NewConfigListCmd(st *store.Store) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := st.AllConfig(context.Background())
			if err != nil {
				return err
			}

			keys := make([]string, 0, len(all))
			for k := range all {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			for _, k := range keys {
				fmt.Printf("%-28s %s\n", k, all[k])
			}
			return nil
		},
	}
}

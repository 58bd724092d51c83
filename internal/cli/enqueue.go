package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aliikhatami94/workbox/internal/job"
	"github.com/Aliikhatami94/workbox/internal/queue"
	"github.com/Aliikhatami94/workbox/internal/store"
)

func NewEnqueueCmd(st *store.Store) *cobra.Command {
	var (
		payload     string
		delay       time.Duration
		maxAttempts int
		backoff     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "enqueue <name>",
		Short: "Add a job to the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			var p job.Payload
			if payload != "" {
				if err := json.Unmarshal([]byte(payload), &p); err != nil {
					return fmt.Errorf("invalid payload json: %w", err)
				}
			}

			// Flags win; the config table supplies the defaults.
			if maxAttempts <= 0 {
				maxAttempts = st.ConfigInt(ctx, "max_attempts", job.DefaultMaxAttempts)
			}
			if backoff <= 0 {
				backoff = time.Duration(st.ConfigInt(ctx, "backoff_seconds", job.DefaultBackoffSeconds)) * time.Second
			}

			opts := []queue.EnqueueOption{
				queue.WithMaxAttempts(maxAttempts),
				queue.WithBackoff(backoff),
			}
			if delay > 0 {
				opts = append(opts, queue.WithDelay(delay))
			}

			j, err := st.Jobs().Enqueue(ctx, args[0], p, opts...)
			if err != nil {
				return err
			}

			fmt.Println("Job enqueued:", j.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&payload, "payload", "", "job payload as a JSON object")
	cmd.Flags().DurationVar(&delay, "delay", 0, "delay before the job becomes available")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "attempt bound before dead-lettering (default from config)")
	cmd.Flags().DurationVar(&backoff, "backoff", 0, "base retry backoff (default from config)")
	return cmd
}

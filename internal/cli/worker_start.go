package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aliikhatami94/workbox/internal/engine"
	"github.com/Aliikhatami94/workbox/internal/outbox"
	"github.com/Aliikhatami94/workbox/internal/store"
	"github.com/Aliikhatami94/workbox/internal/webhook"
)

func NewWorkerStartCmd(st *store.Store) *cobra.Command {
	var (
		count    int
		maxLoops int
		topics   []string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start worker processes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("invalid worker count: %d", count)
			}
			engine.RemoveStopFile()

			ctx := context.Background()
			logger := slog.Default()

			// The delivery handler serves every job relayed from the outbox.
			mux := engine.NewMux()
			mux.HandlePrefix(outbox.JobNamePrefix,
				webhook.NewDeliveryHandler(st.Outbox(), st.Inbox(), webhook.WithLogger(logger)))

			pollInterval := time.Duration(st.ConfigInt(ctx, "poll_interval_ms", 300)) * time.Millisecond
			visibility := time.Duration(st.ConfigInt(ctx, "visibility_timeout_seconds", 60)) * time.Second

			opts := []engine.RunnerOption{
				engine.WithPollInterval(pollInterval),
				engine.WithVisibility(visibility),
				engine.WithRunnerLogger(logger),
			}
			// The env override outranks the config table.
			jobTimeout := time.Duration(st.ConfigInt(ctx, "job_timeout_seconds", 30)) * time.Second
			if os.Getenv(engine.EnvJobTimeout) == "" {
				opts = append(opts, engine.WithJobTimeout(jobTimeout))
			}

			sched := engine.NewScheduler(engine.WithSchedulerLogger(logger))
			sched.AddTask("outbox-relay", 0, outbox.NewTick(st.Outbox(), st.Jobs(), logger, topics...))
			sched.AddTask("inbox-purge", time.Hour, func(ctx context.Context) error {
				n, err := st.Inbox().PurgeExpired(ctx)
				if n > 0 {
					logger.Info("inbox purged", "keys", n)
				}
				return err
			})

			if maxLoops > 0 {
				return runBounded(ctx, st, mux, sched, opts, maxLoops, pollInterval)
			}

			if err := engine.WritePID(os.Getpid()); err != nil {
				return fmt.Errorf("write pid file: %w", err)
			}
			defer engine.RemovePID()

			runners := make([]*engine.Runner, count)
			for i := range runners {
				runners[i] = engine.NewRunner(st.Jobs(), mux.Dispatch, opts...)
				runners[i].Start()
			}
			fmt.Printf("Started %d workers (PID: %d). Use `workbox worker stop` to stop.\n", count, os.Getpid())

			tickCtx, cancelTicks := context.WithCancel(ctx)
			defer cancelTicks()
			go func() {
				ticker := time.NewTicker(pollInterval)
				defer ticker.Stop()
				for {
					select {
					case <-tickCtx.Done():
						return
					case <-ticker.C:
						if err := sched.Tick(tickCtx); err != nil {
							logger.Error("scheduler tick failed", "error", err)
						}
					}
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt)
			stopPoll := time.NewTicker(500 * time.Millisecond)
			defer stopPoll.Stop()

		wait:
			for {
				select {
				case <-sigCh:
					break wait
				case <-stopPoll.C:
					if engine.ShouldStop() {
						break wait
					}
				}
			}

			fmt.Println("Stopping workers gracefully...")
			cancelTicks()
			grace := jobTimeout + time.Second
			for _, r := range runners {
				if !r.Stop(grace) {
					logger.Warn("worker abandoned mid-job; the lease will expire and the job will be retried")
				}
			}
			engine.RemoveStopFile()
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 1, "number of workers to start")
	cmd.Flags().IntVar(&maxLoops, "max-loops", 0, "run at most N poll loops and exit (0 = run until stopped)")
	cmd.Flags().StringSliceVar(&topics, "topic", nil, "restrict the outbox relay to these topics")
	return cmd
}

// runBounded interleaves scheduler ticks with single poll cycles, for
// cron-style invocations that must terminate.
func runBounded(ctx context.Context, st *store.Store, mux *engine.Mux, sched *engine.Scheduler, opts []engine.RunnerOption, maxLoops int, pollInterval time.Duration) error {
	runner := engine.NewRunner(st.Jobs(), mux.Dispatch, opts...)

	for i := 0; i < maxLoops; i++ {
		if err := sched.Tick(ctx); err != nil {
			slog.Default().Error("scheduler tick failed", "error", err)
		}
		processed, err := runner.ProcessOne(ctx)
		if err != nil {
			return err
		}
		if !processed {
			time.Sleep(pollInterval)
		}
	}
	return nil
}

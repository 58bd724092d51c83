package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aliikhatami94/workbox/internal/store"
	"github.com/Aliikhatami94/workbox/internal/webhook"
)

func NewWebhookRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "webhook",
		Short: "Manage webhook subscriptions and publish events",
	}
}

func NewWebhookSubscribeCmd(st *store.Store) *cobra.Command {
	var secrets []string

	cmd := &cobra.Command{
		Use:   "subscribe <topic> <url>",
		Short: "Register a webhook subscription",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(secrets) == 0 {
				return fmt.Errorf("at least one --secret is required")
			}

			sub := webhook.NewSubscription(args[0], args[1], secrets...)
			if err := st.Subscriptions().Add(context.Background(), sub); err != nil {
				return err
			}
			fmt.Println("Subscription created:", sub.ID)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&secrets, "secret", nil, "signing secret; repeat during rotation, first entry signs")
	return cmd
}

func NewWebhookPublishCmd(st *store.Store) *cobra.Command {
	var (
		payload string
		version int
	)

	cmd := &cobra.Command{
		Use:   "publish <topic>",
		Short: "Publish an event to every subscriber of a topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p map[string]any
			if payload != "" {
				if err := json.Unmarshal([]byte(payload), &p); err != nil {
					return fmt.Errorf("invalid payload json: %w", err)
				}
			}

			svc := webhook.NewService(st.Outbox(), st.Subscriptions())
			ids, err := svc.Publish(context.Background(), args[0], p, version)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Println("No subscribers; nothing published.")
				return nil
			}
			fmt.Printf("Published %d outbox message(s): %v\n", len(ids), ids)
			return nil
		},
	}

	cmd.Flags().StringVar(&payload, "payload", "", "event payload as a JSON object")
	cmd.Flags().IntVar(&version, "version", 1, "payload schema version")
	return cmd
}

func NewWebhookListCmd(st *store.Store) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered subscriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			subs, err := st.Subscriptions().List(context.Background())
			if err != nil {
				return err
			}
			if len(subs) == 0 {
				fmt.Println("No subscriptions.")
				return nil
			}
			for _, sub := range subs {
				fmt.Printf("%s | %-16s | %s | secrets=%d\n", sub.ID, sub.Topic, sub.URL, len(sub.Secrets))
			}
			return nil
		},
	}
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show bridge counters (admin only)",
		Long:  "Show the bridge's message counters. Requires a token issued to the admin client ID.",
		RunE:  runStats,
	}

	return cmd
}

func runStats(cmd *cobra.Command, args []string) error {
	if err := requireAuthentication(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	stats, err := client.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	fmt.Printf("Uptime: %s\n", stats.Uptime)
	fmt.Printf("Queue: %d/%d\n\n", stats.QueueDepth, stats.QueueCapacity)
	fmt.Printf("Messages inbound:    %d\n", stats.MessagesInbound)
	fmt.Printf("Messages routed:     %d\n", stats.MessagesRouted)
	fmt.Printf("Messages unrouted:   %d\n", stats.MessagesUnrouted)
	fmt.Printf("Messages published:  %d\n", stats.MessagesPublished)
	fmt.Printf("Publish failures:    %d\n", stats.PublishFailures)
	fmt.Printf("Route cache hits:    %d\n", stats.RouteCacheHits)
	fmt.Printf("Route cache misses:  %d\n", stats.RouteCacheMisses)

	return nil
}

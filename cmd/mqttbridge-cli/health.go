package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newHealthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check bridge health",
		Long:  "Check the health of the bridge and each of its broker connections",
		RunE:  runHealth,
	}

	return cmd
}

func runHealth(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	fmt.Printf("Checking health of %s...\n", serverURL)

	health, err := client.GetHealth(ctx)
	if err != nil {
		return fmt.Errorf("failed to check health: %w", err)
	}

	if health.Healthy {
		fmt.Printf("Bridge is %s\n", color.GreenString("healthy"))
	} else {
		fmt.Printf("Bridge is %s\n", color.RedString("unhealthy"))
	}
	fmt.Printf("Running: %t\n", health.Running)
	fmt.Printf("Uptime: %s\n", health.Uptime)
	fmt.Printf("Queue: %d/%d\n", health.QueueDepth, health.QueueCapacity)

	fmt.Printf("Connections:\n")
	for _, conn := range health.Connections {
		state := color.GreenString("connected")
		if !conn.Connected {
			state = color.RedString("disconnected")
		}
		fmt.Printf("  %-20s %s\n", conn.Name, state)
	}

	if !health.Healthy {
		// Make scripted health checks fail visibly.
		return fmt.Errorf("bridge reported unhealthy")
	}
	return nil
}

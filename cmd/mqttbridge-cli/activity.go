package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newActivityCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show recent forwards",
		Long:  "Show the most recent messages the bridge forwarded, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runActivity(cmd, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of records to show")

	return cmd
}

func runActivity(cmd *cobra.Command, limit int) error {
	if err := requireAuthentication(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	activity, err := client.GetActivity(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to get activity: %w", err)
	}

	if activity.Count == 0 {
		fmt.Println("No forwards recorded yet.")
		return nil
	}

	fmt.Printf("Showing %d of %d forward(s):\n\n", activity.Count, activity.Total)
	for _, record := range activity.Records {
		targets := make([]string, 0, len(record.Destinations))
		for _, dest := range record.Destinations {
			targets = append(targets, fmt.Sprintf("%s %s", dest.Connection, dest.Topic))
		}
		fmt.Printf("#%-6d %s  %s %s (%d bytes)\n",
			record.Seq,
			record.Time.Format("15:04:05.000"),
			record.SourceConn,
			record.SourceTopic,
			record.Bytes)
		fmt.Printf("        -> %s\n", strings.Join(targets, ", "))
	}

	return nil
}

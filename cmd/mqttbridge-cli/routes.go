package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newRoutesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Show the loaded routing table",
		Long:  "Show every route the bridge loaded from its configuration, in resolution order",
		RunE:  runRoutes,
	}

	return cmd
}

func runRoutes(cmd *cobra.Command, args []string) error {
	if err := requireAuthentication(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	routes, err := client.GetRoutes(ctx)
	if err != nil {
		return fmt.Errorf("failed to get routes: %w", err)
	}

	if routes.Count == 0 {
		fmt.Println("No routes loaded.")
		return nil
	}

	fmt.Printf("%d route(s):\n\n", routes.Count)
	for i, route := range routes.Routes {
		fmt.Printf("%3d. %s %s\n", i+1, route.Source, color.CyanString(route.Pattern))
		for _, dest := range route.Destinations {
			fmt.Printf("     -> %s %s (qos %d)\n", dest.Connection, color.CyanString(dest.Topic), dest.QoS)
		}
	}

	return nil
}

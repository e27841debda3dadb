package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rmacdonaldsmith/mqttbridge-go/internal/config"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a configuration file",
		Long: `Validate a bridge configuration file locally: connection blocks,
route specs and the routing table they build. No server is contacted.`,
		Args: cobra.ExactArgs(1),
		RunE: runValidate,
	}

	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := args[0]

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	table, err := cfg.BuildTable()
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	fmt.Printf("%s: %s\n", path, color.GreenString("configuration OK"))
	fmt.Printf("Connections: %d\n", len(cfg.Connections))
	for i, conn := range cfg.Connections {
		fmt.Printf("  %d. %-20s %s\n", i, conn.Name, conn.BrokerURL)
	}
	fmt.Printf("Routes: %d\n", table.Len())
	for i, route := range table.Routes() {
		fmt.Printf("  %d. %s -> %d destination(s)\n", i+1, route.Pattern.String(), len(route.Destinations))
	}

	return nil
}

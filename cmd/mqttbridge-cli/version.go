package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const cliVersion = "1.0.0"

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mqttbridge-cli v%s\n", cliVersion)
		},
	}
}

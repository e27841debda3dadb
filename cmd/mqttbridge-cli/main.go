// Command mqttbridge-cli talks to a running bridge's admin API: it
// authenticates, checks health, and shows the loaded routes, recent
// activity and counters. It can also validate a configuration file
// locally without any server.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rmacdonaldsmith/mqttbridge-go/pkg/httpclient"
)

var (
	// Global flags
	serverURL string
	clientID  string
	token     string
	timeout   time.Duration

	// Global client instance
	client *httpclient.Client
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mqttbridge-cli",
		Short: "MQTT bridge admin command line interface",
		Long: `mqttbridge-cli is a command line interface for the bridge's admin API.
It provides commands for authentication, health checks, and inspecting
the loaded routes, recent forward activity and bridge counters.`,
		PersistentPreRunE: initializeClient,
	}

	// Add global flags
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Bridge admin API URL")
	rootCmd.PersistentFlags().StringVar(&clientID, "client-id", "", "Client ID for authentication")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "JWT token (if already authenticated)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")

	// Add subcommands
	rootCmd.AddCommand(newAuthCommand())
	rootCmd.AddCommand(newHealthCommand())
	rootCmd.AddCommand(newRoutesCommand())
	rootCmd.AddCommand(newActivityCommand())
	rootCmd.AddCommand(newStatsCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// initializeClient sets up the HTTP client with global configuration
func initializeClient(cmd *cobra.Command, args []string) error {
	// Help and local commands need no client.
	switch cmd.Name() {
	case "help", "validate", "version":
		return nil
	}
	if cmd.Parent() == nil {
		return nil
	}

	if clientID == "" {
		return fmt.Errorf("client-id is required")
	}

	config := httpclient.Config{
		ServerURL: serverURL,
		ClientID:  clientID,
		Timeout:   timeout,
	}

	var err error
	client, err = httpclient.NewClient(config)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	if token != "" {
		client.SetToken(token)
	}

	return nil
}

// requireAuthentication checks if the client is authenticated
func requireAuthentication() error {
	if client == nil {
		return fmt.Errorf("client not initialized")
	}

	if !client.IsAuthenticated() {
		return fmt.Errorf("not authenticated - run 'mqttbridge-cli auth' first or provide --token")
	}
	return nil
}

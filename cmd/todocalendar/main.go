package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var addr string

var rootCmd = &cobra.Command{
	Use:   "todocalendar",
	Short: "Todo Calendar - a personal task calendar with reminders",
	Long: `Todo Calendar serves the calendar pages and procedure API, sends due-time
reminders and daily summaries over Telegram, and manages its database schema.

Configuration is read from the environment (and an optional .env file).`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server, reminder scheduler and Telegram bot",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database tables and exit",
	RunE:  runMigrate,
}

func init() {
	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides HTTP_ADDR)")
	rootCmd.Flags().AddFlagSet(serveCmd.Flags())

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	liblog "trpc.group/trpc-go/trpc-a2a-go/log"

	"github.com/tuannvm/ticket-actions/internal/config"
	log "github.com/tuannvm/ticket-actions/internal/logging"
)

var (
	configFile string
	logLevel   string
)

// rootCmd is the ticketwidget entry point
var rootCmd = &cobra.Command{
	Use:   "ticketwidget",
	Short: "Ticket sidebar actions served over HTTP and A2A",
	Long: `ticketwidget runs the ticket sidebar actions (add a word, change the
priority, fetch a joke, create a post, update the Choices field) against a
Freshdesk or Jira backend.

Configuration comes from the environment, an optional .env file and an
optional ticketwidget.yaml holding request template overrides.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := config.ReadConfigFile(configFile); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		if cmd.Flags().Changed("log-level") {
			config.GetViper().Set("log_level", logLevel)
		}
		log.SetLevel(config.GetViper().GetString("log_level"))
		// route the A2A library's logs through the application logger
		liblog.Default = log.Logger
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to ticketwidget.yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd, actionCmd, sendCmd)
}

func main() {
	defer log.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tuannvm/ticket-actions/internal/actions"
	"github.com/tuannvm/ticket-actions/internal/agent"
	"github.com/tuannvm/ticket-actions/internal/config"
)

var (
	sendTicket  string
	sendTitle   string
	sendValue   string
	sendURL     string
	sendTimeout time.Duration
)

// sendCmd sends one action to a running agent
var sendCmd = &cobra.Command{
	Use:       "send <name>",
	Short:     "Send an action to a running A2A agent",
	Args:      cobra.ExactArgs(1),
	ValidArgs: actions.Names,
	RunE:      runSend,
}

func init() {
	sendCmd.Flags().StringVar(&sendTicket, "ticket", "", "ticket id or issue key")
	sendCmd.Flags().StringVar(&sendTitle, "title", "", "post title for create-post")
	sendCmd.Flags().StringVar(&sendValue, "value", "", "selection for update-choice")
	sendCmd.Flags().StringVar(&sendURL, "url", "", "agent URL (defaults to AGENT_URL)")
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 30*time.Second, "how long to wait for the task")
	_ = sendCmd.MarkFlagRequired("ticket")
}

func runSend(cmd *cobra.Command, args []string) error {
	if !actions.IsAction(args[0]) {
		return fmt.Errorf("%w: %s", actions.ErrUnknownAction, args[0])
	}
	cfg := config.NewConfig()
	target := sendURL
	if target == "" {
		target = agent.URL(cfg)
	}

	a2aClient, err := agent.NewClient(cfg, target)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), sendTimeout)
	defer cancel()

	res, err := agent.SendAction(ctx, a2aClient, actions.Request{
		Action:   args[0],
		TicketID: sendTicket,
		Title:    sendTitle,
		Value:    sendValue,
	}, time.Second)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Task %s: %s\n", res.TaskID, res.State)
	if res.Text != "" {
		fmt.Fprintln(cmd.OutOrStdout(), res.Text)
	}
	if res.State == agent.StateFailed {
		return fmt.Errorf("task %s failed", res.TaskID)
	}
	return nil
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tuannvm/ticket-actions/internal/actions"
	"github.com/tuannvm/ticket-actions/internal/config"
	log "github.com/tuannvm/ticket-actions/internal/logging"
	"github.com/tuannvm/ticket-actions/internal/session"
)

var (
	actionTicket string
	actionTitle  string
	actionValue  string
)

// actionCmd runs one action in-process and prints the outcome
var actionCmd = &cobra.Command{
	Use:   "action <name>",
	Short: "Run one action against a ticket",
	Long: fmt.Sprintf(`Run one action against a ticket and print the outcome as JSON.

Actions: %s`, strings.Join(actions.Names, ", ")),
	Args:      cobra.ExactArgs(1),
	ValidArgs: actions.Names,
	RunE:      runAction,
}

func init() {
	actionCmd.Flags().StringVar(&actionTicket, "ticket", "", "ticket id or issue key")
	actionCmd.Flags().StringVar(&actionTitle, "title", "", "post title for create-post")
	actionCmd.Flags().StringVar(&actionValue, "value", "", "selection for update-choice")
	_ = actionCmd.MarkFlagRequired("ticket")
}

func runAction(cmd *cobra.Command, args []string) error {
	if !actions.IsAction(args[0]) {
		return fmt.Errorf("%w: %s", actions.ErrUnknownAction, args[0])
	}
	cfg := config.NewConfig()

	factory, err := session.NewBridgeFactory(cfg)
	if err != nil {
		return fmt.Errorf("failed to create %s bridge: %w", cfg.Backend, err)
	}
	sessions := session.NewManager(cfg, factory)
	defer sessions.Close()

	sess, err := sessions.Get(actionTicket)
	if err != nil {
		return err
	}
	out := sess.Run(cmd.Context(), actions.Request{
		Action:   args[0],
		TicketID: actionTicket,
		Title:    actionTitle,
		Value:    actionValue,
	}, nil)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to print outcome: %w", err)
	}
	if out.Err != nil && !errors.Is(out.Err, actions.ErrValidationFailed) {
		log.Debugf("Action %s failed: %v", args[0], out.Err)
		return fmt.Errorf("%s failed: %s", args[0], out.Error)
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tuannvm/ticket-actions/internal/agent"
	"github.com/tuannvm/ticket-actions/internal/config"
	log "github.com/tuannvm/ticket-actions/internal/logging"
	"github.com/tuannvm/ticket-actions/internal/server"
	"github.com/tuannvm/ticket-actions/internal/session"
)

var (
	servePort      int
	serveAgentPort int
	serveNoAgent   bool
)

// serveCmd runs the widget API and, unless disabled, the A2A agent
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the widget API and the A2A agent",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "widget API port (overrides SERVER_PORT)")
	serveCmd.Flags().IntVar(&serveAgentPort, "agent-port", 0, "A2A agent port (overrides AGENT_PORT)")
	serveCmd.Flags().BoolVar(&serveNoAgent, "no-agent", false, "do not start the A2A agent")
}

func runServe(cmd *cobra.Command, _ []string) error {
	v := config.GetViper()
	if servePort > 0 {
		v.Set("server_port", servePort)
	}
	if serveAgentPort > 0 {
		v.Set("agent_port", serveAgentPort)
	}
	if serveNoAgent {
		v.Set("agent_enabled", false)
	}
	cfg := config.NewConfig()

	factory, err := session.NewBridgeFactory(cfg)
	if err != nil {
		return fmt.Errorf("failed to create %s bridge: %w", cfg.Backend, err)
	}
	sessions := session.NewManager(cfg, factory)
	defer sessions.Close()

	api, err := server.New(cfg, sessions)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return api.Start(ctx) })
	g.Go(func() error { return sessions.RunJanitor(ctx, 0) })

	if cfg.AgentEnabled {
		srv, err := agent.SetupServer(cfg, agent.NewProcessor(sessions))
		if err != nil {
			return fmt.Errorf("failed to setup A2A server: %w", err)
		}
		log.Infof("A2A agent %s advertised at %s", cfg.AgentName, agent.URL(cfg))
		g.Go(func() error { return agent.StartServer(ctx, srv, cfg.ServerHost, cfg.AgentPort) })
	}

	log.Infof("Serving %s tickets on %s:%d", cfg.Backend, cfg.ServerHost, cfg.ServerPort)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

package agent

import (
	"context"
	"fmt"
	"time"

	"trpc.group/trpc-go/trpc-a2a-go/server"
	"trpc.group/trpc-go/trpc-a2a-go/taskmanager"

	"github.com/tuannvm/ticket-actions/internal/actions"
	"github.com/tuannvm/ticket-actions/internal/config"
	log "github.com/tuannvm/ticket-actions/internal/logging"
	widget "github.com/tuannvm/ticket-actions/internal/server"
)

var skillDescriptions = map[string]string{
	actions.ActionAddWord:        "Append a random word to the ticket description",
	actions.ActionChangePriority: "Set the ticket priority to a random level",
	actions.ActionUpdateJoke:     "Write a random joke into the Jokes field",
	actions.ActionCreatePost:     "Create a post from a title and record its id in the API field",
	actions.ActionUpdateChoice:   "Persist a selection into the Choices field",
}

// Skills advertises one skill per action
func Skills() []server.AgentSkill {
	skills := make([]server.AgentSkill, 0, len(actions.Names))
	for _, name := range actions.Names {
		description := skillDescriptions[name]
		skills = append(skills, server.AgentSkill{
			ID:          name,
			Name:        name,
			Description: &description,
		})
	}
	return skills
}

// URL returns the advertised agent URL, derived from host and port when unset
func URL(cfg *config.Config) string {
	if cfg.AgentURL != "" {
		return cfg.AgentURL
	}
	return fmt.Sprintf("http://%s:%d/", cfg.ServerHost, cfg.AgentPort)
}

// SetupServer creates the A2A server for processor
func SetupServer(cfg *config.Config, processor taskmanager.TaskProcessor) (*server.A2AServer, error) {
	description := "Runs ticket widget actions against a ticketing platform"
	agentCard := server.AgentCard{
		Name:        cfg.AgentName,
		Description: &description,
		URL:         URL(cfg),
		Version:     cfg.AgentVersion,
		Provider: &server.AgentProvider{
			Organization: "ticket-actions",
		},
		DefaultInputModes:  []string{"text", "data"},
		DefaultOutputModes: []string{"text", "data"},
		Skills:             Skills(),
	}

	taskManager, err := taskmanager.NewMemoryTaskManager(processor)
	if err != nil {
		return nil, fmt.Errorf("failed to create task manager: %w", err)
	}

	// JSON-RPC at root so A2AClient.SendTasks posts to "/"
	serverOpts := []server.Option{
		server.WithJSONRPCEndpoint("/"),
		server.WithReadTimeout(2 * time.Minute),
		server.WithWriteTimeout(2 * time.Minute),
	}

	provider, err := widget.NewAuthProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure authentication: %w", err)
	}
	if provider != nil {
		log.Infof("Configuring %s authentication for %s", cfg.AuthType, cfg.AgentName)
		serverOpts = append(serverOpts, server.WithAuthProvider(provider))
	} else {
		log.Warnf("No authentication configured for %s, running unauthenticated", cfg.AgentName)
	}

	srv, err := server.NewA2AServer(agentCard, taskManager, serverOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}
	return srv, nil
}

// StartServer runs srv until ctx is cancelled, then shuts it down
func StartServer(ctx context.Context, srv *server.A2AServer, host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting A2A server on %s", addr)
		errCh <- srv.Start(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("A2A server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Infof("Shutting down A2A server...")
	if err := srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

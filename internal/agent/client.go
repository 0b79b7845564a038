package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"trpc.group/trpc-go/trpc-a2a-go/client"
	"trpc.group/trpc-go/trpc-a2a-go/protocol"

	"github.com/tuannvm/ticket-actions/internal/actions"
	"github.com/tuannvm/ticket-actions/internal/config"
	log "github.com/tuannvm/ticket-actions/internal/logging"
	widget "github.com/tuannvm/ticket-actions/internal/server"
)

// Result is the terminal view of a task sent with SendAction
type Result struct {
	TaskID    string
	State     protocol.TaskState
	Text      string
	Artifacts []protocol.Artifact
}

// NewClient creates an A2A client authenticating the way the agent expects
func NewClient(cfg *config.Config, targetURL string) (*client.A2AClient, error) {
	var a2aClient *client.A2AClient
	var err error
	switch cfg.AuthType {
	case "apikey":
		log.Debugf("Using API key authentication for A2A client (API key length: %d)", len(cfg.APIKey))
		a2aClient, err = client.NewA2AClient(targetURL, client.WithAPIKeyAuth(cfg.APIKey, widget.APIKeyHeader))
	default:
		a2aClient, err = client.NewA2AClient(targetURL)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create A2A client: %w", err)
	}
	return a2aClient, nil
}

// SendAction sends req as a task and polls until it leaves the working state
func SendAction(ctx context.Context, a2aClient *client.A2AClient, req actions.Request, pollEvery time.Duration) (*Result, error) {
	params := protocol.SendTaskParams{
		ID: uuid.NewString(),
		Message: protocol.Message{
			Parts: []protocol.Part{&protocol.DataPart{
				Type: "data",
				Data: req,
				Metadata: map[string]interface{}{
					"content-type": "application/json",
				},
			}},
		},
	}

	task, err := a2aClient.SendTasks(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("SendTasks RPC failed: %w", err)
	}
	log.Infof("Task sent. Task ID: %s", task.ID)

	if pollEvery <= 0 {
		pollEvery = time.Second
	}
	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()

	for {
		if res := terminal(task.ID, task.Status.State, task.Status.Message, task.Artifacts); res != nil {
			return res, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for task %s: %w", task.ID, ctx.Err())
		case <-ticker.C:
		}

		task, err = a2aClient.GetTasks(ctx, protocol.TaskQueryParams{ID: params.ID})
		if err != nil {
			return nil, fmt.Errorf("failed to get task: %w", err)
		}
		log.Debugf("Task %s status: %s", task.ID, task.Status.State)
	}
}

func terminal(taskID string, state protocol.TaskState, msg *protocol.Message, artifacts []protocol.Artifact) *Result {
	switch state {
	case StateCompleted, StateFailed, StateInputRequired:
	default:
		return nil
	}
	return &Result{
		TaskID:    taskID,
		State:     state,
		Text:      MessageText(msg),
		Artifacts: artifacts,
	}
}

// MessageText joins the text parts of msg
func MessageText(msg *protocol.Message) string {
	if msg == nil {
		return ""
	}
	var text string
	for _, part := range msg.Parts {
		switch p := part.(type) {
		case *protocol.TextPart:
			text += p.Text
		case protocol.TextPart:
			text += p.Text
		}
	}
	return text
}

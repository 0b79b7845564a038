// Package agent serves the widget actions as A2A tasks.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"trpc.group/trpc-go/trpc-a2a-go/protocol"
	"trpc.group/trpc-go/trpc-a2a-go/taskmanager"

	"github.com/tuannvm/ticket-actions/internal/actions"
	log "github.com/tuannvm/ticket-actions/internal/logging"
	"github.com/tuannvm/ticket-actions/internal/models"
	"github.com/tuannvm/ticket-actions/internal/session"
	"github.com/tuannvm/ticket-actions/internal/status"
)

// Task states used by the agent
const (
	StateWorking       = protocol.TaskState("working")
	StateCompleted     = protocol.TaskState("completed")
	StateFailed        = protocol.TaskState("failed")
	StateInputRequired = protocol.TaskState("input-required")
)

// ResultArtifact names the artifact carrying the action outcome
const ResultArtifact = "result"

// taskUpdater is the part of taskmanager.TaskHandle the agent drives
type taskUpdater interface {
	UpdateStatus(state protocol.TaskState, msg *protocol.Message) error
	AddArtifact(artifact protocol.Artifact) error
}

// Processor runs one action per task against the ticket's session
type Processor struct {
	sessions *session.Manager
}

// NewProcessor creates a task processor backed by sessions
func NewProcessor(sessions *session.Manager) *Processor {
	return &Processor{sessions: sessions}
}

// Process implements the TaskProcessor interface
func (p *Processor) Process(ctx context.Context, taskID string, msg protocol.Message, handle taskmanager.TaskHandle) error {
	return p.process(ctx, taskID, msg, handle)
}

func (p *Processor) process(ctx context.Context, taskID string, msg protocol.Message, handle taskUpdater) error {
	req, err := ParseRequest(msg)
	if err != nil {
		log.Warnf("Task %s rejected: %v", taskID, err)
		if uerr := handle.UpdateStatus(StateFailed, textMessage(err.Error())); uerr != nil {
			return fmt.Errorf("failed to update status: %w", uerr)
		}
		return err
	}

	sess, err := p.sessions.Get(req.TicketID)
	if err != nil {
		log.Warnf("Task %s rejected: %v", taskID, err)
		if uerr := handle.UpdateStatus(StateFailed, textMessage(err.Error())); uerr != nil {
			return fmt.Errorf("failed to update status: %w", uerr)
		}
		return err
	}

	log.Infof("Task %s: running %s on ticket %s", taskID, req.Action, req.TicketID)
	sink := &taskSink{reporter: sess.Status, handle: handle, taskID: taskID}
	// the ticket write runs to completion even if the task is cancelled
	out := sess.Run(context.WithoutCancel(ctx), req, sink)

	if err := handle.AddArtifact(resultArtifact(out)); err != nil {
		return fmt.Errorf("failed to record artifact: %w", err)
	}

	state, text := finalState(out)
	if err := handle.UpdateStatus(state, textMessage(text)); err != nil {
		return fmt.Errorf("failed to complete task: %w", err)
	}
	log.Infof("Task %s finished in state %s", taskID, state)
	return nil
}

// ParseRequest reads the action request from a DataPart or a JSON TextPart
func ParseRequest(msg protocol.Message) (actions.Request, error) {
	if len(msg.Parts) == 0 {
		return actions.Request{}, fmt.Errorf("empty message or no parts")
	}

	var lastErr error
	for _, part := range msg.Parts {
		raw, ok, err := partJSON(part)
		if err != nil {
			lastErr = err
			continue
		}
		if !ok {
			continue
		}

		var req actions.Request
		if err := json.Unmarshal(raw, &req); err != nil {
			lastErr = fmt.Errorf("failed to parse action request: %w", err)
			continue
		}
		if err := validate(req); err != nil {
			return actions.Request{}, err
		}
		return req, nil
	}
	if lastErr != nil {
		return actions.Request{}, lastErr
	}
	return actions.Request{}, fmt.Errorf("no text or data part found in message")
}

func partJSON(part protocol.Part) ([]byte, bool, error) {
	switch v := part.(type) {
	case protocol.DataPart:
		raw, err := json.Marshal(v.Data)
		return raw, true, err
	case *protocol.DataPart:
		raw, err := json.Marshal(v.Data)
		return raw, true, err
	case protocol.TextPart:
		return []byte(v.Text), true, nil
	case *protocol.TextPart:
		return []byte(v.Text), true, nil
	}
	return nil, false, nil
}

func validate(req actions.Request) error {
	if strings.TrimSpace(req.TicketID) == "" {
		return fmt.Errorf("missing required field: ticketId")
	}
	if req.Action == "" {
		return fmt.Errorf("missing required field: action")
	}
	if !actions.IsAction(req.Action) {
		return fmt.Errorf("%w: %s", actions.ErrUnknownAction, req.Action)
	}
	return nil
}

// StateFor maps a status color onto the task state it represents
func StateFor(color models.Color) protocol.TaskState {
	switch color {
	case models.ColorSuccess:
		return StateCompleted
	case models.ColorWarning:
		return StateInputRequired
	case models.ColorError:
		return StateFailed
	default:
		return StateWorking
	}
}

func finalState(out actions.Outcome) (protocol.TaskState, string) {
	if !out.Status.IsZero() {
		return StateFor(out.Status.Color), out.Status.Text
	}
	if errors.Is(out.Err, actions.ErrValidationFailed) {
		return StateInputRequired, out.Error
	}
	if out.Err != nil {
		return StateFailed, out.Error
	}
	return StateCompleted, ""
}

func resultArtifact(out actions.Outcome) protocol.Artifact {
	name := ResultArtifact
	description := fmt.Sprintf("Outcome of %s", out.Action)
	return protocol.Artifact{
		Name:        &name,
		Description: &description,
		Parts: []protocol.Part{&protocol.DataPart{
			Type: "data",
			Data: out,
			Metadata: map[string]interface{}{
				"content-type": "application/json",
			},
		}},
		Metadata: map[string]interface{}{
			"action": out.Action,
			"ok":     out.OK(),
		},
	}
}

func textMessage(text string) *protocol.Message {
	part := protocol.NewTextPart(text)
	return &protocol.Message{Parts: []protocol.Part{part}}
}

// taskSink shows messages in the session status slot and mirrors
// in-progress messages as working updates on the task
type taskSink struct {
	reporter *status.Reporter
	handle   taskUpdater
	taskID   string
}

func (s *taskSink) Show(msg models.StatusMessage) uint64 {
	gen := s.reporter.Show(msg)
	s.mirror(msg)
	return gen
}

func (s *taskSink) ShowTransient(msg models.StatusMessage) uint64 {
	gen := s.reporter.ShowTransient(msg)
	s.mirror(msg)
	return gen
}

// mirror only forwards working updates; the terminal state is set once the
// outcome artifact is recorded
func (s *taskSink) mirror(msg models.StatusMessage) {
	if StateFor(msg.Color) != StateWorking {
		return
	}
	if err := s.handle.UpdateStatus(StateWorking, textMessage(msg.Text)); err != nil {
		log.Warnf("Task %s: failed to update status: %v", s.taskID, err)
	}
}

package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trpc.group/trpc-go/trpc-a2a-go/protocol"

	"github.com/tuannvm/ticket-actions/internal/actions"
	"github.com/tuannvm/ticket-actions/internal/bridge"
	"github.com/tuannvm/ticket-actions/internal/config"
	"github.com/tuannvm/ticket-actions/internal/models"
	"github.com/tuannvm/ticket-actions/internal/session"
)

type statusUpdate struct {
	state protocol.TaskState
	text  string
}

type fakeHandle struct {
	updates   []statusUpdate
	artifacts []protocol.Artifact
}

func (h *fakeHandle) UpdateStatus(state protocol.TaskState, msg *protocol.Message) error {
	h.updates = append(h.updates, statusUpdate{state: state, text: MessageText(msg)})
	return nil
}

func (h *fakeHandle) AddArtifact(artifact protocol.Artifact) error {
	h.artifacts = append(h.artifacts, artifact)
	return nil
}

type choicesBridge struct {
	updateErr error
}

func (b *choicesBridge) InvokeTemplate(ctx context.Context, name string, _ bridge.InvokeOptions) (*bridge.TemplateResponse, error) {
	switch name {
	case bridge.TemplateGetTicketFields:
		return &bridge.TemplateResponse{Status: 200, Response: `[{"name":"cf_choice_field","label":"Choices"}]`}, nil
	case bridge.TemplateUpdateTicket:
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if b.updateErr != nil {
			return nil, b.updateErr
		}
	}
	return &bridge.TemplateResponse{Status: 200, Response: `{}`}, nil
}

func (b *choicesBridge) GetContext(context.Context, bridge.ContextKind) (*models.Context, error) {
	return &models.Context{Ticket: &models.TicketContext{ID: "42"}}, nil
}

func (b *choicesBridge) SetUIValue(context.Context, string, interface{}) error { return nil }

func newProcessor(t *testing.T, b bridge.Bridge) (*Processor, *session.Manager) {
	t.Helper()
	m := session.NewManager(&config.Config{StatusClearAfter: time.Hour}, func(string, *bridge.Form) bridge.Bridge { return b })
	t.Cleanup(m.Close)
	return NewProcessor(m), m
}

func TestParseRequestFromDataPart(t *testing.T) {
	msg := protocol.Message{Parts: []protocol.Part{&protocol.DataPart{
		Type: "data",
		Data: map[string]interface{}{"ticketId": "42", "action": "update-choice", "value": "Third"},
	}}}

	req, err := ParseRequest(msg)
	require.NoError(t, err)
	assert.Equal(t, actions.Request{Action: actions.ActionUpdateChoice, TicketID: "42", Value: "Third"}, req)
}

func TestParseRequestFromTextPart(t *testing.T) {
	msg := protocol.Message{Parts: []protocol.Part{
		protocol.NewTextPart(`{"ticketId":"42","action":"create-post","title":"Hello"}`),
	}}

	req, err := ParseRequest(msg)
	require.NoError(t, err)
	assert.Equal(t, "Hello", req.Title)
	assert.Equal(t, actions.ActionCreatePost, req.Action)
}

func TestParseRequestErrors(t *testing.T) {
	tests := []struct {
		name string
		msg  protocol.Message
	}{
		{"no parts", protocol.Message{}},
		{"not json", protocol.Message{Parts: []protocol.Part{protocol.NewTextPart("add a word please")}}},
		{"missing ticket", protocol.Message{Parts: []protocol.Part{protocol.NewTextPart(`{"action":"add-word"}`)}}},
		{"missing action", protocol.Message{Parts: []protocol.Part{protocol.NewTextPart(`{"ticketId":"42"}`)}}},
		{"unknown action", protocol.Message{Parts: []protocol.Part{protocol.NewTextPart(`{"ticketId":"42","action":"delete"}`)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRequest(tt.msg)
			assert.Error(t, err)
		})
	}
}

func TestStateFor(t *testing.T) {
	assert.Equal(t, StateWorking, StateFor(models.ColorInfo))
	assert.Equal(t, StateCompleted, StateFor(models.ColorSuccess))
	assert.Equal(t, StateInputRequired, StateFor(models.ColorWarning))
	assert.Equal(t, StateFailed, StateFor(models.ColorError))
}

func TestProcessCompletesTask(t *testing.T) {
	p, m := newProcessor(t, &choicesBridge{})
	h := &fakeHandle{}
	msg := protocol.Message{Parts: []protocol.Part{
		protocol.NewTextPart(`{"ticketId":"42","action":"update-choice","value":"Third"}`),
	}}

	require.NoError(t, p.process(context.Background(), "task-1", msg, h))

	require.Len(t, h.updates, 2)
	assert.Equal(t, statusUpdate{StateWorking, "Updating Choices..."}, h.updates[0])
	assert.Equal(t, statusUpdate{StateCompleted, "Choices updated to: Third"}, h.updates[1])

	require.Len(t, h.artifacts, 1)
	require.NotNil(t, h.artifacts[0].Name)
	assert.Equal(t, ResultArtifact, *h.artifacts[0].Name)
	assert.Equal(t, true, h.artifacts[0].Metadata["ok"])

	sess, ok := m.Lookup("42")
	require.True(t, ok)
	assert.Equal(t, "Choices updated to: Third", sess.Status.Current().Message.Text)
}

func TestProcessFailedAction(t *testing.T) {
	p, _ := newProcessor(t, &choicesBridge{updateErr: &bridge.CallError{Template: bridge.TemplateUpdateTicket, Status: 500, Err: errors.New("boom")}})
	h := &fakeHandle{}
	msg := protocol.Message{Parts: []protocol.Part{
		protocol.NewTextPart(`{"ticketId":"42","action":"update-choice","value":"Third"}`),
	}}

	require.NoError(t, p.process(context.Background(), "task-2", msg, h))
	last := h.updates[len(h.updates)-1]
	assert.Equal(t, StateFailed, last.state)
	assert.Contains(t, last.text, "Error: ")
	assert.Equal(t, false, h.artifacts[0].Metadata["ok"])
}

func TestProcessWarningNeedsInput(t *testing.T) {
	p, _ := newProcessor(t, &choicesBridge{})
	h := &fakeHandle{}
	msg := protocol.Message{Parts: []protocol.Part{
		protocol.NewTextPart(`{"ticketId":"42","action":"create-post","title":""}`),
	}}

	require.NoError(t, p.process(context.Background(), "task-3", msg, h))
	require.Len(t, h.updates, 1)
	assert.Equal(t, statusUpdate{StateInputRequired, "Please enter a title"}, h.updates[0])
}

func TestProcessRejectsBadMessage(t *testing.T) {
	p, _ := newProcessor(t, &choicesBridge{})
	h := &fakeHandle{}

	err := p.process(context.Background(), "task-4", protocol.Message{}, h)
	assert.Error(t, err)
	require.Len(t, h.updates, 1)
	assert.Equal(t, StateFailed, h.updates[0].state)
	assert.Empty(t, h.artifacts)
}

func TestProcessRejectsInvalidTicketID(t *testing.T) {
	p, m := newProcessor(t, &choicesBridge{})
	h := &fakeHandle{}
	msg := protocol.Message{Parts: []protocol.Part{
		protocol.NewTextPart(`{"ticketId":"1/../../contacts/9","action":"update-choice","value":"Third"}`),
	}}

	err := p.process(context.Background(), "task-5", msg, h)
	assert.ErrorIs(t, err, session.ErrInvalidTicketID)
	require.Len(t, h.updates, 1)
	assert.Equal(t, StateFailed, h.updates[0].state)
	assert.Empty(t, h.artifacts)
	assert.Zero(t, m.Len())
}

func TestProcessFinishesWriteAfterCancel(t *testing.T) {
	p, _ := newProcessor(t, &choicesBridge{})
	h := &fakeHandle{}
	msg := protocol.Message{Parts: []protocol.Part{
		protocol.NewTextPart(`{"ticketId":"42","action":"update-choice","value":"Third"}`),
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, p.process(ctx, "task-6", msg, h))

	last := h.updates[len(h.updates)-1]
	assert.Equal(t, statusUpdate{StateCompleted, "Choices updated to: Third"}, last)
}

func TestSkillsCoverEveryAction(t *testing.T) {
	skills := Skills()
	require.Len(t, skills, len(actions.Names))
	for i, s := range skills {
		assert.Equal(t, actions.Names[i], s.ID)
		require.NotNil(t, s.Description)
		assert.NotEmpty(t, *s.Description)
	}
}

func TestURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8081/", URL(&config.Config{ServerHost: "localhost", AgentPort: 8081}))
	assert.Equal(t, "https://agent.example.com/", URL(&config.Config{AgentURL: "https://agent.example.com/"}))
}

package actions

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/tuannvm/ticket-actions/internal/bridge"
	"github.com/tuannvm/ticket-actions/internal/models"
)

const defaultFields = `[
	{"name":"subject","label":"Subject"},
	{"name":"cf_jokes","label":"Jokes"},
	{"name":"cf_api","label":"API"},
	{"name":"cf_choice_field","label":"Choices"}
]`

type call struct {
	name string
	opts bridge.InvokeOptions
}

// fakeBridge records every call and serves canned responses
type fakeBridge struct {
	mu sync.Mutex

	ticket     *models.TicketContext
	contact    *models.ContactContext
	contextErr error
	responses  map[string]string
	errs       map[string]error
	uiErr      error

	calls    []call
	contexts []bridge.ContextKind
	ui       map[string]interface{}
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{
		ticket:  &models.TicketContext{ID: "42", Description: "Printer jammed"},
		contact: &models.ContactContext{ID: "7", Name: "Ada Lovelace"},
		responses: map[string]string{
			bridge.TemplateGetTicketFields: defaultFields,
			bridge.TemplateUpdateTicket:    `{"id":42}`,
		},
		errs: map[string]error{},
		ui:   map[string]interface{}{},
	}
}

func (f *fakeBridge) InvokeTemplate(_ context.Context, name string, opts bridge.InvokeOptions) (*bridge.TemplateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{name: name, opts: opts})
	if err := f.errs[name]; err != nil {
		return nil, err
	}
	return &bridge.TemplateResponse{Status: 200, Response: f.responses[name]}, nil
}

func (f *fakeBridge) GetContext(_ context.Context, kind bridge.ContextKind) (*models.Context, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contexts = append(f.contexts, kind)
	if f.contextErr != nil {
		return nil, f.contextErr
	}
	if kind == bridge.ContextContact {
		return &models.Context{Contact: f.contact}, nil
	}
	return &models.Context{Ticket: f.ticket}, nil
}

func (f *fakeBridge) SetUIValue(_ context.Context, fieldID string, value interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uiErr != nil {
		return f.uiErr
	}
	f.ui[fieldID] = value
	return nil
}

func (f *fakeBridge) networkCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls) + len(f.contexts)
}

func (f *fakeBridge) callsTo(name string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

// updates decodes every updateTicket body
func (f *fakeBridge) updates() []map[string]interface{} {
	var out []map[string]interface{}
	for _, c := range f.callsTo(bridge.TemplateUpdateTicket) {
		var body map[string]interface{}
		if err := json.Unmarshal(c.opts.Body, &body); err == nil {
			out = append(out, body)
		}
	}
	return out
}

// recordingSink keeps every status message in order
type recordingSink struct {
	mu        sync.Mutex
	messages  []models.StatusMessage
	transient []bool
}

func (s *recordingSink) Show(msg models.StatusMessage) uint64 {
	return s.record(msg, false)
}

func (s *recordingSink) ShowTransient(msg models.StatusMessage) uint64 {
	return s.record(msg, true)
}

func (s *recordingSink) record(msg models.StatusMessage, transient bool) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	s.transient = append(s.transient, transient)
	return uint64(len(s.messages))
}

func (s *recordingSink) last() (models.StatusMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return models.StatusMessage{}, false
	}
	return s.messages[len(s.messages)-1], s.transient[len(s.transient)-1]
}

// fixedPicker always picks index i (modulo n)
type fixedPicker int

func (p fixedPicker) IntN(n int) int { return int(p) % n }

// memWidget stores widget element values
type memWidget map[string]interface{}

func (w memWidget) Set(id string, value interface{}) error {
	w[id] = value
	return nil
}

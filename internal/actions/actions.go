// Package actions implements the widget's button and dropdown workflows.
//
// Every workflow is a fresh, linear attempt: show progress, read the ticket,
// compute the new value, resolve the target field, persist through the
// updateTicket template, reflect the value into the visible form, and show
// the result. Failures end the workflow and are reported through the status
// slot only; nothing propagates past a single invocation.
package actions

import (
	"context"
	"errors"
	"fmt"

	"github.com/tuannvm/ticket-actions/internal/bridge"
	"github.com/tuannvm/ticket-actions/internal/fields"
	log "github.com/tuannvm/ticket-actions/internal/logging"
	"github.com/tuannvm/ticket-actions/internal/models"
)

// Action names as used by the transports
const (
	ActionAddWord        = "add-word"
	ActionChangePriority = "change-priority"
	ActionUpdateJoke     = "update-joke-field"
	ActionCreatePost     = "create-post"
	ActionUpdateChoice   = "update-choice"
)

// Names lists every action in display order
var Names = []string{
	ActionAddWord,
	ActionChangePriority,
	ActionUpdateJoke,
	ActionCreatePost,
	ActionUpdateChoice,
}

// Field labels and the legacy internal names accepted in their place
const (
	LabelJokes      = "Jokes"
	LegacyJokesName = "cf_cf_random_word"
	LabelAPI        = "API"
	LegacyAPIName   = "cf_api"
	LabelChoices    = "Choices"
)

var (
	// ErrValidationFailed is returned for user input rejected before any call
	ErrValidationFailed = errors.New("validation failed")
	// ErrUnknownAction is returned by Run for an unrecognized action name
	ErrUnknownAction = errors.New("unknown action")
)

// IsAction reports whether name is a known action
func IsAction(name string) bool {
	for _, n := range Names {
		if n == name {
			return true
		}
	}
	return false
}

// Sink receives status messages
type Sink interface {
	Show(msg models.StatusMessage) uint64
	ShowTransient(msg models.StatusMessage) uint64
}

// Widget holds the widget's own input elements
type Widget interface {
	Set(id string, value interface{}) error
}

// Request is one UI event
type Request struct {
	Action   string `json:"action"`
	TicketID string `json:"ticketId,omitempty"`
	Title    string `json:"title,omitempty"`
	Value    string `json:"value,omitempty"`
}

// Outcome is the result of one action invocation
type Outcome struct {
	Action string               `json:"action"`
	Status models.StatusMessage `json:"status"`
	Field  string               `json:"field,omitempty"`
	Value  interface{}          `json:"value,omitempty"`
	Error  string               `json:"error,omitempty"`
	Err    error                `json:"-"`
}

// OK reports whether the action persisted its value
func (o Outcome) OK() bool { return o.Err == nil }

// Handlers runs actions against one bridge
type Handlers struct {
	bridge         bridge.Bridge
	resolver       *fields.Resolver
	status         Sink
	widget         Widget
	picker         Picker
	choicesEnabled bool
}

// Option configures Handlers
type Option func(*Handlers)

// WithPicker replaces the random source
func WithPicker(p Picker) Option {
	return func(h *Handlers) { h.picker = p }
}

// WithWidget sets the store for the widget's own inputs
func WithWidget(w Widget) Option {
	return func(h *Handlers) { h.widget = w }
}

// WithChoices toggles the choices dropdown pre-fill on activation
func WithChoices(enabled bool) Option {
	return func(h *Handlers) { h.choicesEnabled = enabled }
}

// New creates Handlers for b reporting to status
func New(b bridge.Bridge, status Sink, opts ...Option) *Handlers {
	h := &Handlers{
		bridge:         b,
		resolver:       fields.NewResolver(b),
		status:         status,
		picker:         globalPicker{},
		choicesEnabled: true,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run dispatches a request to its handler
func (h *Handlers) Run(ctx context.Context, req Request) Outcome {
	switch req.Action {
	case ActionAddWord:
		return h.AddRandomWord(ctx)
	case ActionChangePriority:
		return h.ChangePriority(ctx)
	case ActionUpdateJoke:
		return h.UpdateJokeField(ctx)
	case ActionCreatePost:
		return h.CreatePost(ctx, req.Title)
	case ActionUpdateChoice:
		return h.UpdateChoice(ctx, req.Value)
	default:
		err := fmt.Errorf("%w: %s", ErrUnknownAction, req.Action)
		return Outcome{Action: req.Action, Err: err, Error: err.Error()}
	}
}

// Activation is what the widget shows when it is opened on a ticket
type Activation struct {
	Text    string `json:"text"`
	Choices string `json:"choices,omitempty"`
}

// Activate builds the header text from the ticket's requester and, when
// enabled, pre-fills the choices dropdown
func (h *Handlers) Activate(ctx context.Context) (Activation, error) {
	data, err := h.bridge.GetContext(ctx, bridge.ContextContact)
	if err != nil {
		return Activation{}, fmt.Errorf("failed to read contact: %w", err)
	}
	if data.Contact == nil {
		return Activation{}, fmt.Errorf("failed to read contact: empty context")
	}

	a := Activation{Text: fmt.Sprintf("Ticket is created by %s", data.Contact.Name)}
	if h.choicesEnabled {
		if value, ok := h.PrefillChoices(ctx); ok {
			a.Choices = value
		}
	}
	return a, nil
}

// PrefillChoices loads the current Choices field value into the dropdown.
// It is a convenience: every failure is logged and reported as not found.
func (h *Handlers) PrefillChoices(ctx context.Context) (string, bool) {
	ticket, err := h.ticket(ctx)
	if err != nil {
		log.Infof("Could not load current Choices value: %v", err)
		return "", false
	}
	name, err := h.resolver.Resolve(ctx, fields.ByLabel(LabelChoices))
	if err != nil {
		log.Infof("Could not load current Choices value: %v", err)
		return "", false
	}

	raw, ok := ticket.CustomFields[name]
	if !ok || raw == nil {
		return "", false
	}
	value := fmt.Sprint(raw)
	if value == "" {
		return "", false
	}

	if h.widget != nil {
		if err := h.widget.Set(bridge.ElementChoicesDropdown, value); err != nil {
			log.Infof("Could not set choices dropdown: %v", err)
		}
	}
	log.Infof("Loaded current Choices value: %s", value)
	return value, true
}

func (h *Handlers) ticket(ctx context.Context) (*models.TicketContext, error) {
	data, err := h.bridge.GetContext(ctx, bridge.ContextTicket)
	if err != nil {
		return nil, err
	}
	if data.Ticket == nil {
		return nil, fmt.Errorf("ticket context is empty")
	}
	return data.Ticket, nil
}

// Package bridge adapts the ticketing platform to the widget: ticket and
// contact reads, named request templates and the visible ticket form.
package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/tuannvm/ticket-actions/internal/models"
)

// ContextKind selects which host data a GetContext call reads
type ContextKind string

const (
	ContextTicket  ContextKind = "ticket"
	ContextContact ContextKind = "contact"
)

// Template names consumed by the widget
const (
	TemplateGetTicketFields = "getTicketFields"
	TemplateUpdateTicket    = "updateTicket"
	TemplateGetRandomJoke   = "getRandomJoke"
	TemplateCreatePost      = "createPost"
	TemplateGetTicket       = "getTicket"
	TemplateGetContact      = "getContact"
)

var (
	// ErrBridgeCallFailed matches every failed host or network call
	ErrBridgeCallFailed = errors.New("bridge call failed")
	// ErrNotSettable is returned when the form does not expose a field id
	ErrNotSettable = errors.New("field is not settable")
	// ErrUnknownTemplate is returned for a template name with no definition
	ErrUnknownTemplate = errors.New("unknown template")
)

// InvokeOptions carries the per-call template context and request body
type InvokeOptions struct {
	Context map[string]string
	Body    []byte
}

// TemplateResponse is the raw result of a template invocation
type TemplateResponse struct {
	Status   int
	Response string
}

// Requester invokes named request templates
type Requester interface {
	InvokeTemplate(ctx context.Context, name string, opts InvokeOptions) (*TemplateResponse, error)
}

// Bridge is the host platform surface the widget runs against
type Bridge interface {
	Requester
	GetContext(ctx context.Context, kind ContextKind) (*models.Context, error)
	SetUIValue(ctx context.Context, fieldID string, value interface{}) error
}

// CallError describes a failed template invocation
type CallError struct {
	Template string
	Status   int
	Body     string
	Err      error
}

func (e *CallError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s failed: %v", e.Template, e.Err)
	case e.Body != "":
		return fmt.Sprintf("%s failed: status %d, body: %s", e.Template, e.Status, truncate(e.Body, 200))
	default:
		return fmt.Sprintf("%s failed: status %d", e.Template, e.Status)
	}
}

func (e *CallError) Unwrap() error { return e.Err }

// Is makes every CallError match ErrBridgeCallFailed
func (e *CallError) Is(target error) bool { return target == ErrBridgeCallFailed }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

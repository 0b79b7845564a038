package bridge

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/tuannvm/ticket-actions/internal/models"
)

// HTTPBridge is a Bridge bound to one ticket, backed by request templates
type HTTPBridge struct {
	requester Requester
	ticketID  string
	form      *Form
}

// NewHTTPBridge creates a bridge for ticketID. The form receives SetUIValue calls.
func NewHTTPBridge(requester Requester, ticketID string, form *Form) *HTTPBridge {
	return &HTTPBridge{
		requester: requester,
		ticketID:  ticketID,
		form:      form,
	}
}

// InvokeTemplate forwards to the underlying requester
func (b *HTTPBridge) InvokeTemplate(ctx context.Context, name string, opts InvokeOptions) (*TemplateResponse, error) {
	return b.requester.InvokeTemplate(ctx, name, opts)
}

// GetContext reads the ticket, and for the contact kind also its requester
func (b *HTTPBridge) GetContext(ctx context.Context, kind ContextKind) (*models.Context, error) {
	resp, err := b.requester.InvokeTemplate(ctx, TemplateGetTicket, InvokeOptions{
		Context: map[string]string{"ticket_id": b.ticketID},
	})
	if err != nil {
		return nil, err
	}
	ticket, err := ParseTicket(resp.Response)
	if err != nil {
		return nil, &CallError{Template: TemplateGetTicket, Status: resp.Status, Err: err}
	}

	switch kind {
	case ContextTicket:
		return &models.Context{Ticket: ticket}, nil
	case ContextContact:
		if ticket.RequesterID == "" {
			return nil, &CallError{Template: TemplateGetContact, Err: fmt.Errorf("ticket %s has no requester", ticket.ID)}
		}
		resp, err := b.requester.InvokeTemplate(ctx, TemplateGetContact, InvokeOptions{
			Context: map[string]string{"contact_id": ticket.RequesterID},
		})
		if err != nil {
			return nil, err
		}
		contact, err := ParseContact(resp.Response)
		if err != nil {
			return nil, &CallError{Template: TemplateGetContact, Status: resp.Status, Err: err}
		}
		return &models.Context{Contact: contact}, nil
	default:
		return nil, fmt.Errorf("unknown context kind %q", kind)
	}
}

// SetUIValue reflects a value into the visible form
func (b *HTTPBridge) SetUIValue(_ context.Context, fieldID string, value interface{}) error {
	if b.form == nil {
		return fmt.Errorf("%w: %s", ErrNotSettable, fieldID)
	}
	return b.form.Set(fieldID, value)
}

// ParseTicket reads a platform ticket document
func ParseTicket(raw string) (*models.TicketContext, error) {
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("invalid ticket response")
	}
	doc := gjson.Parse(raw)
	id := doc.Get("id")
	if !id.Exists() {
		return nil, fmt.Errorf("ticket response missing id")
	}
	ticket := &models.TicketContext{
		ID:          id.String(),
		Subject:     doc.Get("subject").String(),
		Description: doc.Get("description").String(),
		Priority:    int(doc.Get("priority").Int()),
		RequesterID: doc.Get("requester_id").String(),
	}
	if cf, ok := doc.Get("custom_fields").Value().(map[string]interface{}); ok {
		ticket.CustomFields = cf
	}
	return ticket, nil
}

// ParseContact reads a platform contact document
func ParseContact(raw string) (*models.ContactContext, error) {
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("invalid contact response")
	}
	doc := gjson.Parse(raw)
	return &models.ContactContext{
		ID:    doc.Get("id").String(),
		Name:  doc.Get("name").String(),
		Email: doc.Get("email").String(),
	}, nil
}

package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	atlassian "github.com/ctreminiom/go-atlassian/v2/pkg/infra/models"
	"github.com/tidwall/gjson"

	"github.com/tuannvm/ticket-actions/internal/bridge"
	"github.com/tuannvm/ticket-actions/internal/models"
)

// priorityNames maps widget priority values onto Jira's default priority scheme
var priorityNames = map[int]string{
	1: "Low",
	2: "Medium",
	3: "High",
	4: "Highest",
}

// Bridge serves the widget templates from a Jira issue. Templates that do
// not target the ticketing platform are forwarded to external.
type Bridge struct {
	issues   IssueService
	issueKey string
	external bridge.Requester
	form     *bridge.Form

	mu      sync.Mutex
	schemas map[string]*atlassian.IssueFieldSchemaScheme
}

// NewBridge creates a bridge bound to one issue
func NewBridge(issues IssueService, issueKey string, external bridge.Requester, form *bridge.Form) *Bridge {
	return &Bridge{
		issues:   issues,
		issueKey: issueKey,
		external: external,
		form:     form,
	}
}

// ticketUpdate is the updateTicket body shape shared with the Freshdesk templates
type ticketUpdate struct {
	Description  *string                `json:"description"`
	Priority     *int                   `json:"priority"`
	CustomFields map[string]interface{} `json:"custom_fields"`
}

// InvokeTemplate implements bridge.Requester
func (b *Bridge) InvokeTemplate(ctx context.Context, name string, opts bridge.InvokeOptions) (*bridge.TemplateResponse, error) {
	switch name {
	case bridge.TemplateGetTicketFields:
		return b.listFields(ctx)
	case bridge.TemplateUpdateTicket:
		return b.update(ctx, opts)
	case bridge.TemplateGetTicket:
		_, raw, err := b.issues.Get(ctx, b.target(opts))
		if err != nil {
			return nil, &bridge.CallError{Template: name, Err: err}
		}
		return &bridge.TemplateResponse{Status: 200, Response: string(raw)}, nil
	default:
		if b.external == nil {
			return nil, &bridge.CallError{Template: name, Err: bridge.ErrUnknownTemplate}
		}
		return b.external.InvokeTemplate(ctx, name, opts)
	}
}

func (b *Bridge) target(opts bridge.InvokeOptions) string {
	if key := opts.Context["ticket_id"]; key != "" {
		return key
	}
	return b.issueKey
}

func (b *Bridge) listFields(ctx context.Context) (*bridge.TemplateResponse, error) {
	fields, err := b.issues.Fields(ctx)
	if err != nil {
		return nil, &bridge.CallError{Template: bridge.TemplateGetTicketFields, Err: err}
	}
	b.keepSchemas(fields)
	defs := make([]models.FieldDefinition, 0, len(fields))
	for _, f := range fields {
		if f == nil {
			continue
		}
		defs = append(defs, models.FieldDefinition{Name: f.ID, Label: f.Name})
	}
	out, err := json.Marshal(defs)
	if err != nil {
		return nil, &bridge.CallError{Template: bridge.TemplateGetTicketFields, Err: err}
	}
	return &bridge.TemplateResponse{Status: 200, Response: string(out)}, nil
}

func (b *Bridge) update(ctx context.Context, opts bridge.InvokeOptions) (*bridge.TemplateResponse, error) {
	var upd ticketUpdate
	if err := json.Unmarshal(opts.Body, &upd); err != nil {
		return nil, &bridge.CallError{Template: bridge.TemplateUpdateTicket, Err: fmt.Errorf("failed to unmarshal update: %w", err)}
	}

	payload := &atlassian.IssueSchemeV2{Fields: &atlassian.IssueFieldsSchemeV2{}}
	if upd.Description != nil {
		payload.Fields.Description = *upd.Description
	}
	if upd.Priority != nil {
		name, ok := priorityNames[*upd.Priority]
		if !ok {
			return nil, &bridge.CallError{Template: bridge.TemplateUpdateTicket, Err: fmt.Errorf("unsupported priority %d", *upd.Priority)}
		}
		payload.Fields.Priority = &atlassian.PriorityScheme{Name: name}
	}

	var custom *atlassian.CustomFields
	if len(upd.CustomFields) > 0 {
		custom = &atlassian.CustomFields{}
		for id, value := range upd.CustomFields {
			schema, err := b.schema(ctx, id)
			if err != nil {
				return nil, &bridge.CallError{Template: bridge.TemplateUpdateTicket, Err: err}
			}
			if err := setCustomField(custom, id, schema, value); err != nil {
				return nil, &bridge.CallError{Template: bridge.TemplateUpdateTicket, Err: fmt.Errorf("failed to set %s: %w", id, err)}
			}
		}
	}

	if err := b.issues.Update(ctx, b.target(opts), payload, custom); err != nil {
		return nil, &bridge.CallError{Template: bridge.TemplateUpdateTicket, Err: err}
	}
	return &bridge.TemplateResponse{Status: 204, Response: "{}"}, nil
}

func (b *Bridge) keepSchemas(fields []*atlassian.IssueFieldScheme) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.schemas = make(map[string]*atlassian.IssueFieldSchemaScheme, len(fields))
	for _, f := range fields {
		if f != nil {
			b.schemas[f.ID] = f.Schema
		}
	}
}

// schema returns the schema of field id, listing the fields when none are known yet
func (b *Bridge) schema(ctx context.Context, id string) (*atlassian.IssueFieldSchemaScheme, error) {
	b.mu.Lock()
	known := b.schemas != nil
	schema := b.schemas[id]
	b.mu.Unlock()
	if known {
		return schema, nil
	}

	fields, err := b.issues.Fields(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list fields: %w", err)
	}
	b.keepSchemas(fields)

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.schemas[id], nil
}

// setCustomField writes value in the shape Jira expects for the field type.
// Fields without a known schema are written as text.
func setCustomField(custom *atlassian.CustomFields, id string, schema *atlassian.IssueFieldSchemaScheme, value interface{}) error {
	var typ, items string
	if schema != nil {
		typ, items = schema.Type, schema.Items
	}

	switch {
	case typ == "option":
		return custom.Select(id, fmt.Sprint(value))
	case typ == "array" && items == "option":
		return custom.MultiSelect(id, stringList(value))
	case typ == "number":
		n, err := strconv.ParseFloat(fmt.Sprint(value), 64)
		if err != nil {
			return fmt.Errorf("%q is not a number", value)
		}
		return custom.Number(id, n)
	default:
		return custom.Text(id, fmt.Sprint(value))
	}
}

func stringList(value interface{}) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case nil:
		return nil
	default:
		return []string{fmt.Sprint(v)}
	}
}

// GetContext reads the issue; the contact is the issue reporter
func (b *Bridge) GetContext(ctx context.Context, kind bridge.ContextKind) (*models.Context, error) {
	issue, raw, err := b.issues.Get(ctx, b.issueKey)
	if err != nil {
		return nil, &bridge.CallError{Template: bridge.TemplateGetTicket, Err: err}
	}
	if issue == nil || issue.Fields == nil {
		return nil, &bridge.CallError{Template: bridge.TemplateGetTicket, Err: fmt.Errorf("issue %s has no fields", b.issueKey)}
	}

	switch kind {
	case bridge.ContextTicket:
		return &models.Context{Ticket: ticketFromIssue(issue, raw)}, nil
	case bridge.ContextContact:
		reporter := issue.Fields.Reporter
		if reporter == nil {
			return nil, &bridge.CallError{Template: bridge.TemplateGetContact, Err: fmt.Errorf("issue %s has no reporter", b.issueKey)}
		}
		return &models.Context{Contact: &models.ContactContext{
			ID:    reporter.AccountID,
			Name:  reporter.DisplayName,
			Email: reporter.EmailAddress,
		}}, nil
	default:
		return nil, fmt.Errorf("unknown context kind %q", kind)
	}
}

// SetUIValue reflects a value into the session form
func (b *Bridge) SetUIValue(_ context.Context, fieldID string, value interface{}) error {
	if b.form == nil {
		return fmt.Errorf("%w: %s", bridge.ErrNotSettable, fieldID)
	}
	return b.form.Set(fieldID, value)
}

func ticketFromIssue(issue *atlassian.IssueSchemeV2, raw []byte) *models.TicketContext {
	ticket := &models.TicketContext{
		ID:          issue.Key,
		Subject:     issue.Fields.Summary,
		Description: issue.Fields.Description,
	}
	if issue.Fields.Priority != nil {
		ticket.Priority = priorityValue(issue.Fields.Priority.Name)
	}
	if issue.Fields.Reporter != nil {
		ticket.RequesterID = issue.Fields.Reporter.AccountID
	}

	if len(raw) > 0 {
		custom := make(map[string]interface{})
		gjson.GetBytes(raw, "fields").ForEach(func(key, value gjson.Result) bool {
			if strings.HasPrefix(key.String(), "customfield_") {
				custom[key.String()] = customFieldValue(value)
			}
			return true
		})
		if len(custom) > 0 {
			ticket.CustomFields = custom
		}
	}
	return ticket
}

// customFieldValue reduces select options to the option value, so
// {"id":"10021","value":"Second"} reads as "Second"
func customFieldValue(value gjson.Result) interface{} {
	switch {
	case value.IsObject() && value.Get("value").Exists():
		return value.Get("value").String()
	case value.IsArray():
		items := value.Array()
		out := make([]interface{}, 0, len(items))
		for _, item := range items {
			out = append(out, customFieldValue(item))
		}
		return out
	default:
		return value.Value()
	}
}

func priorityValue(name string) int {
	for value, n := range priorityNames {
		if strings.EqualFold(n, name) {
			return value
		}
	}
	return 0
}

// Package fields resolves human-readable ticket field labels to internal field names.
package fields

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tuannvm/ticket-actions/internal/bridge"
	"github.com/tuannvm/ticket-actions/internal/models"
)

// ErrFieldNotFound matches every *NotFoundError
var ErrFieldNotFound = errors.New("field not found")

// NotFoundError is returned when no field definition satisfies a predicate
type NotFoundError struct {
	Predicate string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("custom field %s not found", e.Predicate)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrFieldNotFound }

// Predicate selects a field definition
type Predicate struct {
	desc  string
	match func(models.FieldDefinition) bool
}

func (p Predicate) String() string { return p.desc }

// Match reports whether def satisfies the predicate
func (p Predicate) Match(def models.FieldDefinition) bool { return p.match(def) }

// ByLabel matches the exact label
func ByLabel(label string) Predicate {
	return Predicate{
		desc:  fmt.Sprintf("%q", label),
		match: func(d models.FieldDefinition) bool { return d.Label == label },
	}
}

// ByLabelOrName matches the exact label, or the internal name for installs
// where the field was created before it was relabeled
func ByLabelOrName(label, name string) Predicate {
	return Predicate{
		desc:  fmt.Sprintf("%q (or name %q)", label, name),
		match: func(d models.FieldDefinition) bool { return d.Label == label || d.Name == name },
	}
}

// Find returns the first definition satisfying p, in list order
func Find(defs []models.FieldDefinition, p Predicate) (models.FieldDefinition, bool) {
	for _, d := range defs {
		if p.Match(d) {
			return d, true
		}
	}
	return models.FieldDefinition{}, false
}

// Resolver lists the ticket field definitions on every call; nothing is cached
type Resolver struct {
	requester bridge.Requester
}

// NewResolver creates a Resolver
func NewResolver(requester bridge.Requester) *Resolver {
	return &Resolver{requester: requester}
}

// Fields fetches the current field definitions
func (r *Resolver) Fields(ctx context.Context) ([]models.FieldDefinition, error) {
	resp, err := r.requester.InvokeTemplate(ctx, bridge.TemplateGetTicketFields, bridge.InvokeOptions{})
	if err != nil {
		return nil, err
	}
	var defs []models.FieldDefinition
	if err := json.Unmarshal([]byte(resp.Response), &defs); err != nil {
		return nil, &bridge.CallError{
			Template: bridge.TemplateGetTicketFields,
			Status:   resp.Status,
			Err:      fmt.Errorf("failed to unmarshal field list: %w", err),
		}
	}
	return defs, nil
}

// Resolve returns the internal name of the first field satisfying p
func (r *Resolver) Resolve(ctx context.Context, p Predicate) (string, error) {
	defs, err := r.Fields(ctx)
	if err != nil {
		return "", err
	}
	def, ok := Find(defs, p)
	if !ok {
		return "", &NotFoundError{Predicate: p.String()}
	}
	return def.Name, nil
}

package bridge

import (
	"fmt"
	"sync"
)

// Ids of ticket form properties and widget elements the form accepts by default
const (
	FieldPriority    = "priority"
	FieldDescription = "description"
	FieldStatus      = "status"

	ElementChoicesDropdown = "choicesDropdown"
	ElementPostTitleInput  = "postTitleInput"
)

// Form is the set of values visible to the agent working the ticket: the
// host form properties the widget reflected and the widget's own inputs.
// Only registered ids are settable.
type Form struct {
	mu       sync.RWMutex
	values   map[string]interface{}
	settable map[string]bool
}

// NewForm creates a form accepting the built-in ids plus extra
func NewForm(extra ...string) *Form {
	f := &Form{
		values:   make(map[string]interface{}),
		settable: make(map[string]bool),
	}
	f.Allow(FieldPriority, FieldDescription, FieldStatus, ElementChoicesDropdown, ElementPostTitleInput)
	f.Allow(extra...)
	return f
}

// Allow registers ids as settable
func (f *Form) Allow(ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.settable[id] = true
	}
}

// Set stores a value for a settable id
func (f *Form) Set(id string, value interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.settable[id] {
		return fmt.Errorf("%w: %s", ErrNotSettable, id)
	}
	f.values[id] = value
	return nil
}

// Get returns the current value of id
func (f *Form) Get(id string) (interface{}, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.values[id]
	return v, ok
}

// Snapshot returns a copy of all values
func (f *Form) Snapshot() map[string]interface{} {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]interface{}, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out
}

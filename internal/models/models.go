package models

// Color is the tag attached to a status message
type Color string

const (
	ColorInfo    Color = "info"
	ColorSuccess Color = "success"
	ColorWarning Color = "warning"
	ColorError   Color = "error"
)

// TicketContext is the ticket data supplied by the host platform for one invocation.
// It is never cached across calls.
type TicketContext struct {
	ID           string                 `json:"id"`
	Subject      string                 `json:"subject,omitempty"`
	Description  string                 `json:"description"`
	Priority     int                    `json:"priority"`
	RequesterID  string                 `json:"requesterId,omitempty"`
	CustomFields map[string]interface{} `json:"customFields,omitempty"`
}

// ContactContext is the requester of the ticket
type ContactContext struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Context is the result of a host data read. Only the requested kind is populated.
type Context struct {
	Ticket  *TicketContext  `json:"ticket,omitempty"`
	Contact *ContactContext `json:"contact,omitempty"`
}

// FieldDefinition describes one ticket field as listed by the platform
type FieldDefinition struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// StatusMessage is the text shown in the widget's status slot
type StatusMessage struct {
	Text  string `json:"text"`
	Color Color  `json:"color,omitempty"`
}

// IsZero reports whether the slot is empty
func (m StatusMessage) IsZero() bool {
	return m.Text == "" && m.Color == ""
}

// Priority is a ticket priority value and its display name
type Priority struct {
	Value int    `json:"value"`
	Name  string `json:"name"`
}

// Joke is the payload returned by the joke API
type Joke struct {
	Setup     string `json:"setup"`
	Punchline string `json:"punchline"`
}

// Post is the payload returned by the post creation API
type Post struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

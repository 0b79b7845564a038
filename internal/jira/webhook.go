package jira

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// webhookPayload is the part of a Jira webhook the widget reads
type webhookPayload struct {
	Timestamp    int64  `json:"timestamp"`
	WebhookEvent string `json:"webhookEvent"`
	Issue        struct {
		Key string `json:"key"`
	} `json:"issue"`
	User struct {
		DisplayName string `json:"displayName"`
	} `json:"user"`
	Changelog *struct {
		Items []changelogItem `json:"items"`
	} `json:"changelog,omitempty"`
}

type changelogItem struct {
	Field    string `json:"field"`
	FieldID  string `json:"fieldId"`
	To       string `json:"to"`
	ToString string `json:"toString"`
}

// IssueEvent is a Jira webhook reduced to what changed on which issue
type IssueEvent struct {
	IssueKey  string
	Event     string // "created", "updated", "deleted", ...
	Actor     string
	Timestamp time.Time
	// Changes maps form ids onto their new values
	Changes map[string]interface{}
}

// ParseWebhook decodes a Jira webhook body
func ParseWebhook(payload []byte) (*IssueEvent, error) {
	var p webhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("failed to parse Jira webhook: %w", err)
	}
	if p.Issue.Key == "" {
		return nil, fmt.Errorf("Jira webhook has no issue key")
	}

	ev := &IssueEvent{
		IssueKey: p.Issue.Key,
		Event:    eventType(p.WebhookEvent),
		Actor:    p.User.DisplayName,
		Changes:  make(map[string]interface{}),
	}
	if p.Timestamp > 0 {
		ev.Timestamp = time.UnixMilli(p.Timestamp)
	} else {
		ev.Timestamp = time.Now()
	}

	if p.Changelog != nil {
		for _, item := range p.Changelog.Items {
			id, value := formChange(item)
			if id != "" {
				ev.Changes[id] = value
			}
		}
	}
	return ev, nil
}

// formChange maps a changelog item onto the id and value the widget form uses
func formChange(item changelogItem) (string, interface{}) {
	id := item.FieldID
	if id == "" {
		id = strings.ToLower(item.Field)
	}
	switch id {
	case "priority":
		if v := priorityValue(item.ToString); v != 0 {
			return id, v
		}
		return "", nil
	case "description":
		return id, item.ToString
	}
	if item.ToString != "" {
		return id, item.ToString
	}
	return id, item.To
}

func eventType(webhookEvent string) string {
	switch webhookEvent {
	case "jira:issue_created":
		return "created"
	case "jira:issue_updated":
		return "updated"
	case "jira:issue_deleted":
		return "deleted"
	default:
		if parts := strings.SplitN(webhookEvent, ":", 2); len(parts) == 2 {
			return parts[1]
		}
		return webhookEvent
	}
}

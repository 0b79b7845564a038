package jira

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWebhook(t *testing.T) {
	webhookData, err := os.ReadFile("testdata/jira-webhook.json")
	require.NoError(t, err)

	ev, err := ParseWebhook(webhookData)
	require.NoError(t, err)

	assert.Equal(t, "SUP-7", ev.IssueKey)
	assert.Equal(t, "updated", ev.Event)
	assert.Equal(t, "Bryan Rollins", ev.Actor)
	assert.Equal(t, int64(1525698237764), ev.Timestamp.UnixMilli())

	assert.Equal(t, map[string]interface{}{
		"priority":          3,
		"customfield_10010": "Third",
		"summary":           "Printer jammed",
	}, ev.Changes)
}

func TestParseWebhookRejectsInvalidPayloads(t *testing.T) {
	_, err := ParseWebhook([]byte(`{"webhookEvent":"jira:issue_updated"}`))
	assert.Error(t, err)

	_, err = ParseWebhook([]byte(`not json`))
	assert.Error(t, err)
}

func TestEventType(t *testing.T) {
	assert.Equal(t, "created", eventType("jira:issue_created"))
	assert.Equal(t, "deleted", eventType("jira:issue_deleted"))
	assert.Equal(t, "worklog_updated", eventType("jira:worklog_updated"))
	assert.Equal(t, "custom", eventType("custom"))
}

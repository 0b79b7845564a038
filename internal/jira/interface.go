package jira

import (
	"context"

	atlassian "github.com/ctreminiom/go-atlassian/v2/pkg/infra/models"

	"github.com/tuannvm/ticket-actions/internal/config"
)

// IssueService defines the Jira operations the bridge needs
type IssueService interface {
	// Fields lists every system and custom issue field
	Fields(ctx context.Context) ([]*atlassian.IssueFieldScheme, error)
	// Get fetches an issue and returns it together with the raw response body
	Get(ctx context.Context, issueKey string) (*atlassian.IssueSchemeV2, []byte, error)
	// Update edits an issue's fields
	Update(ctx context.Context, issueKey string, payload *atlassian.IssueSchemeV2, customFields *atlassian.CustomFields) error
}

// NewAtlassianService creates an IssueService backed by go-atlassian
func NewAtlassianService(cfg *config.Config) (IssueService, error) {
	return NewClient(cfg)
}

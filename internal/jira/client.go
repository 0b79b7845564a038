package jira

import (
	"context"
	"fmt"
	"net/http"

	v2 "github.com/ctreminiom/go-atlassian/v2/jira/v2"
	atlassian "github.com/ctreminiom/go-atlassian/v2/pkg/infra/models"

	"github.com/tuannvm/ticket-actions/internal/config"
)

// Client is a Jira REST v2 client
type Client struct {
	api *v2.Client
}

// NewClient creates a new Jira client using basic auth with an API token
func NewClient(cfg *config.Config) (*Client, error) {
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	api, err := v2.New(httpClient, cfg.JiraBaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create Jira client: %w", err)
	}
	api.Auth.SetBasicAuth(cfg.JiraUsername, cfg.JiraAPIToken)
	return &Client{api: api}, nil
}

// Fields lists the issue fields of the instance
func (c *Client) Fields(ctx context.Context) ([]*atlassian.IssueFieldScheme, error) {
	fields, resp, err := c.api.Issue.Field.Gets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list fields: %w", describe(resp, err))
	}
	return fields, nil
}

// Get fetches an issue by key with all of its fields
func (c *Client) Get(ctx context.Context, issueKey string) (*atlassian.IssueSchemeV2, []byte, error) {
	issue, resp, err := c.api.Issue.Get(ctx, issueKey, nil, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get issue %s: %w", issueKey, describe(resp, err))
	}
	var raw []byte
	if resp != nil {
		raw = resp.Bytes.Bytes()
	}
	return issue, raw, nil
}

// Update edits the issue without notifying watchers
func (c *Client) Update(ctx context.Context, issueKey string, payload *atlassian.IssueSchemeV2, customFields *atlassian.CustomFields) error {
	resp, err := c.api.Issue.Update(ctx, issueKey, false, payload, customFields, nil)
	if err != nil {
		return fmt.Errorf("failed to update issue %s: %w", issueKey, describe(resp, err))
	}
	return nil
}

// describe adds the HTTP status to an error returned by go-atlassian
func describe(resp *atlassian.ResponseScheme, err error) error {
	if resp == nil {
		return err
	}
	return fmt.Errorf("status %d: %w", resp.Code, err)
}

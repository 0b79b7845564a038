package bridge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/tuannvm/ticket-actions/internal/logging"
)

// Invoker executes request templates over HTTP
type Invoker struct {
	registry   *Registry
	httpClient *http.Client
}

// NewInvoker creates an Invoker. A zero timeout means no client-side timeout.
func NewInvoker(registry *Registry, timeout time.Duration) *Invoker {
	return &Invoker{
		registry: registry,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// InvokeTemplate renders and sends the named template. Non-2xx responses are
// returned as a *CallError carrying the status and body.
func (i *Invoker) InvokeTemplate(ctx context.Context, name string, opts InvokeOptions) (*TemplateResponse, error) {
	req, err := i.registry.NewRequest(ctx, name, opts)
	if err != nil {
		return nil, &CallError{Template: name, Err: err}
	}

	start := time.Now()
	resp, err := i.httpClient.Do(req)
	if err != nil {
		return nil, &CallError{Template: name, Err: fmt.Errorf("failed to send request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &CallError{Template: name, Status: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	log.Debugf("Template %s: %s %s -> %d in %v", name, req.Method, req.URL.Path, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &CallError{Template: name, Status: resp.StatusCode, Body: string(body)}
	}
	return &TemplateResponse{Status: resp.StatusCode, Response: string(body)}, nil
}

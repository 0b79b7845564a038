package bridge

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannvm/ticket-actions/internal/config"
)

func testParams() map[string]string {
	return map[string]string{
		"base_url":     "https://acme.freshdesk.com",
		"api_key":      "secret",
		"joke_api_url": config.DefaultJokeAPIURL,
		"post_api_url": config.DefaultPostAPIURL,
	}
}

func TestRegistryRendersUpdateTicket(t *testing.T) {
	reg, err := NewRegistry(DefaultTemplates(), testParams())
	require.NoError(t, err)

	req, err := reg.NewRequest(context.Background(), TemplateUpdateTicket, InvokeOptions{
		Context: map[string]string{"ticket_id": "42"},
		Body:    []byte(`{"priority":3}`),
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "https://acme.freshdesk.com/api/v2/tickets/42", req.URL.String())
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("secret:X"))
	assert.Equal(t, wantAuth, req.Header.Get("Authorization"))

	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"priority":3}`, string(body))
}

func TestRegistryEscapesPathValues(t *testing.T) {
	reg, err := NewRegistry(DefaultTemplates(), testParams())
	require.NoError(t, err)

	for _, name := range []string{TemplateGetTicket, TemplateUpdateTicket} {
		req, err := reg.NewRequest(context.Background(), name, InvokeOptions{
			Context: map[string]string{"ticket_id": "1/../../contacts/9"},
		})
		require.NoError(t, err)
		assert.Equal(t, "/api/v2/tickets/1/../../contacts/9", req.URL.Path, name)
		assert.Equal(t, "https://acme.freshdesk.com/api/v2/tickets/1%2F..%2F..%2Fcontacts%2F9", req.URL.String(), name)
	}

	req, err := reg.NewRequest(context.Background(), TemplateGetContact, InvokeOptions{
		Context: map[string]string{"contact_id": "9?x=1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "/api/v2/contacts/9%3Fx=1", req.URL.EscapedPath())
	assert.Empty(t, req.URL.RawQuery)
}

func TestRegistryMissingContextKey(t *testing.T) {
	reg, err := NewRegistry(DefaultTemplates(), testParams())
	require.NoError(t, err)

	_, err = reg.NewRequest(context.Background(), TemplateGetTicket, InvokeOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ticket_id")
}

func TestRegistryUnknownTemplate(t *testing.T) {
	reg, err := NewRegistry(DefaultTemplates(), testParams())
	require.NoError(t, err)

	_, err = reg.NewRequest(context.Background(), "deleteEverything", InvokeOptions{})
	assert.True(t, errors.Is(err, ErrUnknownTemplate))
	assert.False(t, reg.Has("deleteEverything"))
	assert.True(t, reg.Has("GETRANDOMJOKE"))
}

func TestRegistryRejectsBadTemplate(t *testing.T) {
	_, err := NewRegistry(map[string]TemplateDef{
		"broken": {URL: "{{.iparams.base_url"},
	}, nil)
	assert.Error(t, err)
}

func TestTemplatesFromConfigOverrides(t *testing.T) {
	cfg := &config.Config{
		Templates: map[string]config.TemplateConfig{
			// viper hands keys back lowercased
			"getrandomjoke": {URL: "http://jokes.local/random", Headers: map[string]string{"x-trace": "1"}},
			"custom":        {Method: "post", URL: "http://example.local/hook"},
		},
	}

	defs := TemplatesFromConfig(cfg)

	joke := defs[TemplateGetRandomJoke]
	assert.Equal(t, http.MethodGet, joke.Method)
	assert.Equal(t, "http://jokes.local/random", joke.URL)
	assert.Equal(t, "1", joke.Headers["X-Trace"])
	assert.Equal(t, "application/json", joke.Headers["Content-Type"])

	assert.Equal(t, http.MethodPost, defs["custom"].Method)
	_, stale := defs["getrandomjoke"]
	assert.False(t, stale)
}

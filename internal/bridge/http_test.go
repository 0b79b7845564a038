package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPlatform(t *testing.T, handler http.HandlerFunc) *Invoker {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	params := testParams()
	params["base_url"] = srv.URL
	params["joke_api_url"] = srv.URL + "/jokes/random"
	reg, err := NewRegistry(DefaultTemplates(), params)
	require.NoError(t, err)
	return NewInvoker(reg, 5*time.Second)
}

func TestHTTPBridgeTicketContext(t *testing.T) {
	inv := newPlatform(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/tickets/42" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"id":42,"subject":"Printer","description":"<p>jammed</p>","priority":2,"requester_id":7,"custom_fields":{"cf_choice_field":"B","cf_api":null}}`)
	})
	b := NewHTTPBridge(inv, "42", NewForm())

	got, err := b.GetContext(context.Background(), ContextTicket)
	require.NoError(t, err)
	require.NotNil(t, got.Ticket)
	assert.Nil(t, got.Contact)

	assert.Equal(t, "42", got.Ticket.ID)
	assert.Equal(t, "<p>jammed</p>", got.Ticket.Description)
	assert.Equal(t, 2, got.Ticket.Priority)
	assert.Equal(t, "7", got.Ticket.RequesterID)
	assert.Equal(t, "B", got.Ticket.CustomFields["cf_choice_field"])
}

func TestHTTPBridgeContactContext(t *testing.T) {
	inv := newPlatform(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v2/tickets/42":
			fmt.Fprint(w, `{"id":42,"requester_id":7}`)
		case "/api/v2/contacts/7":
			fmt.Fprint(w, `{"id":7,"name":"Ada Lovelace","email":"ada@example.com"}`)
		default:
			http.NotFound(w, r)
		}
	})
	b := NewHTTPBridge(inv, "42", NewForm())

	got, err := b.GetContext(context.Background(), ContextContact)
	require.NoError(t, err)
	require.NotNil(t, got.Contact)
	assert.Equal(t, "Ada Lovelace", got.Contact.Name)
	assert.Equal(t, "ada@example.com", got.Contact.Email)
}

func TestHTTPBridgeCallFailure(t *testing.T) {
	inv := newPlatform(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"code":"access_denied"}`)
	})
	b := NewHTTPBridge(inv, "42", NewForm())

	_, err := b.GetContext(context.Background(), ContextTicket)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBridgeCallFailed))

	var callErr *CallError
	require.True(t, errors.As(err, &callErr))
	assert.Equal(t, http.StatusForbidden, callErr.Status)
	assert.Equal(t, TemplateGetTicket, callErr.Template)
}

func TestHTTPBridgeInvalidTicketJSON(t *testing.T) {
	inv := newPlatform(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `not json`)
	})
	b := NewHTTPBridge(inv, "42", NewForm())

	_, err := b.GetContext(context.Background(), ContextTicket)
	assert.True(t, errors.Is(err, ErrBridgeCallFailed))
}

func TestInvokerSendsBody(t *testing.T) {
	var gotMethod, gotBody string
	inv := newPlatform(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		buf, _ := io.ReadAll(r.Body)
		gotBody = string(buf)
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"id":42}`)
	})

	resp, err := inv.InvokeTemplate(context.Background(), TemplateUpdateTicket, InvokeOptions{
		Context: map[string]string{"ticket_id": "42"},
		Body:    []byte(`{"description":"x"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, `{"id":42}`, resp.Response)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, `{"description":"x"}`, gotBody)
}

func TestFormSettable(t *testing.T) {
	f := NewForm("cf_jokes")
	b := NewHTTPBridge(nil, "42", f)

	require.NoError(t, b.SetUIValue(context.Background(), FieldPriority, 3))
	require.NoError(t, b.SetUIValue(context.Background(), "cf_jokes", "ha"))

	err := b.SetUIValue(context.Background(), "cf_unknown", "x")
	assert.True(t, errors.Is(err, ErrNotSettable))

	snap := f.Snapshot()
	assert.Equal(t, map[string]interface{}{FieldPriority: 3, "cf_jokes": "ha"}, snap)
}

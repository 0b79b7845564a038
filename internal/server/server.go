// Package server exposes the widget over HTTP for the page embedding it.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"trpc.group/trpc-go/trpc-a2a-go/auth"

	"github.com/tuannvm/ticket-actions/internal/actions"
	"github.com/tuannvm/ticket-actions/internal/config"
	"github.com/tuannvm/ticket-actions/internal/jira"
	log "github.com/tuannvm/ticket-actions/internal/logging"
	"github.com/tuannvm/ticket-actions/internal/session"
	"github.com/tuannvm/ticket-actions/internal/status"
)

const maxBodyBytes = 1 << 20

type requestIDKey struct{}

// RequestID returns the id assigned to the request carrying ctx
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// actionBody is the optional body of an action request
type actionBody struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

// Server is the widget HTTP API
type Server struct {
	cfg      *config.Config
	sessions *session.Manager
	provider auth.Provider
	mux      *http.ServeMux
}

// New creates the widget API server
func New(cfg *config.Config, sessions *session.Manager) (*Server, error) {
	provider, err := NewAuthProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure authentication: %w", err)
	}
	if provider == nil {
		log.Warnf("No authentication configured for the widget API, running unauthenticated")
	}

	s := &Server{
		cfg:      cfg,
		sessions: sessions,
		provider: provider,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	protect := func(h http.HandlerFunc) http.Handler {
		return AuthMiddleware(s.provider, h)
	}

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("POST /tickets/{id}/activate", protect(s.handleActivate))
	s.mux.Handle("POST /tickets/{id}/actions/{action}", protect(s.handleAction))
	s.mux.Handle("GET /tickets/{id}/status", protect(s.handleStatus))
	s.mux.Handle("GET /tickets/{id}/form", protect(s.handleForm))
	s.mux.Handle("POST /webhooks/jira", protect(s.handleJiraWebhook))
}

// Handler returns the routed handler with request ids attached
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		start := time.Now()
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		s.mux.ServeHTTP(w, r.WithContext(ctx))
		log.Debugf("[%s] %s %s served in %v", id, r.Method, r.URL.Path, time.Since(start))
	})
}

// Start serves on the configured address until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.ServerHost, s.cfg.ServerPort)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting widget API on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("widget API server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Infof("Shutting down widget API...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown widget API: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// session returns the session named by the {id} path value. It writes a 400
// and returns false for ids the backend could not have issued.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		returnJSONError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return sess, true
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	requestID := RequestID(r.Context())
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	ticketID := sess.TicketID
	log.Infof("[%s] Activating widget on ticket %s", requestID, ticketID)

	activation, err := sess.Activate(r.Context())
	if err != nil {
		log.Errorf("[%s] Activation failed for ticket %s: %v", requestID, ticketID, err)
		returnJSONError(w, http.StatusBadGateway, fmt.Sprintf("Failed to activate widget: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, activation)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	requestID := RequestID(r.Context())
	ticketID := r.PathValue("id")
	action := r.PathValue("action")

	if err := session.ValidateTicketID(s.cfg.Backend, ticketID); err != nil {
		returnJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !actions.IsAction(action) {
		returnJSONError(w, http.StatusNotFound, fmt.Sprintf("Unknown action: %s", action))
		return
	}

	var body actionBody
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		returnJSONError(w, http.StatusBadRequest, fmt.Sprintf("Failed to read request body: %v", err))
		return
	}
	defer r.Body.Close()
	if len(raw) > 0 {
		if ct := r.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "application/json") {
			returnJSONError(w, http.StatusUnsupportedMediaType, "Content type must be application/json")
			return
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			returnJSONError(w, http.StatusBadRequest, fmt.Sprintf("Failed to parse request body as JSON: %v", err))
			return
		}
	}

	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	log.Infof("[%s] Running %s on ticket %s", requestID, action, ticketID)
	// a client hanging up must not abort a ticket write halfway
	out := sess.Run(context.WithoutCancel(r.Context()), actions.Request{
		Action:   action,
		TicketID: ticketID,
		Title:    body.Title,
		Value:    body.Value,
	}, nil)

	code := http.StatusOK
	switch {
	case out.OK():
	case errors.Is(out.Err, actions.ErrValidationFailed):
		code = http.StatusUnprocessableEntity
	default:
		code = http.StatusBadGateway
		log.Warnf("[%s] %s failed on ticket %s: %v", requestID, action, ticketID, out.Err)
	}
	writeJSON(w, code, out)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ticketID := r.PathValue("id")
	if err := session.ValidateTicketID(s.cfg.Backend, ticketID); err != nil {
		returnJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, ok := s.sessions.Lookup(ticketID)
	if !ok {
		writeJSON(w, http.StatusOK, status.Snapshot{})
		return
	}
	writeJSON(w, http.StatusOK, sess.Status.Current())
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	ticketID := r.PathValue("id")
	if err := session.ValidateTicketID(s.cfg.Backend, ticketID); err != nil {
		returnJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, ok := s.sessions.Lookup(ticketID)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{})
		return
	}
	writeJSON(w, http.StatusOK, sess.Form.Snapshot())
}

// handleJiraWebhook copies issue changes made outside the widget into the
// form of an open session
func (s *Server) handleJiraWebhook(w http.ResponseWriter, r *http.Request) {
	requestID := RequestID(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		returnJSONError(w, http.StatusBadRequest, fmt.Sprintf("Failed to read request body: %v", err))
		return
	}
	defer r.Body.Close()
	if len(body) == 0 {
		returnJSONError(w, http.StatusBadRequest, "Request body cannot be empty")
		return
	}

	ev, err := jira.ParseWebhook(body)
	if err != nil {
		returnJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	log.Infof("[%s] Jira %s event for %s by %s", requestID, ev.Event, ev.IssueKey, ev.Actor)

	applied := 0
	if sess, ok := s.sessions.Lookup(ev.IssueKey); ok {
		for id, value := range ev.Changes {
			if err := sess.Form.Set(id, value); err != nil {
				log.Debugf("[%s] Skipping %s: %v", requestID, id, err)
				continue
			}
			applied++
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "success",
		"ticketId":  ev.IssueKey,
		"applied":   applied,
		"requestId": requestID,
	})
}

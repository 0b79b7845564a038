// Package session keeps one widget session per ticket: its bridge, visible
// form and status slot.
package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tuannvm/ticket-actions/internal/actions"
	"github.com/tuannvm/ticket-actions/internal/bridge"
	"github.com/tuannvm/ticket-actions/internal/config"
	"github.com/tuannvm/ticket-actions/internal/jira"
	log "github.com/tuannvm/ticket-actions/internal/logging"
	"github.com/tuannvm/ticket-actions/internal/status"
)

// ErrInvalidTicketID is returned for ids the backend could not have issued
var ErrInvalidTicketID = errors.New("invalid ticket id")

var (
	freshdeskTicketID = regexp.MustCompile(`^[0-9]+$`)
	jiraIssueKey      = regexp.MustCompile(`^[A-Z][A-Z0-9_]+-[0-9]+$`)
)

// ValidateTicketID checks ticketID against the id format of backend. Ids end
// up in request paths, so anything else is rejected before a session exists.
func ValidateTicketID(backend, ticketID string) error {
	re := freshdeskTicketID
	if backend == config.BackendJira {
		re = jiraIssueKey
	}
	if !re.MatchString(ticketID) {
		return fmt.Errorf("%w: %q", ErrInvalidTicketID, ticketID)
	}
	return nil
}

// BridgeFactory creates the bridge for a ticket. form receives UI reflections.
type BridgeFactory func(ticketID string, form *bridge.Form) bridge.Bridge

// Session is the widget opened on one ticket
type Session struct {
	TicketID string
	Bridge   bridge.Bridge
	Form     *bridge.Form
	Status   *status.Reporter

	choices   bool
	serialize bool
	mu        sync.Mutex

	// running counts actions and activations in flight
	running  atomic.Int32
	lastUsed atomic.Int64
}

func (s *Session) touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

// begin marks the session busy until the returned func is called
func (s *Session) begin() func() {
	s.running.Add(1)
	s.touch()
	return func() {
		s.touch()
		s.running.Add(-1)
	}
}

func (s *Session) idleSince() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// Handlers returns action handlers reporting to sink, or to the session's
// status slot when sink is nil
func (s *Session) Handlers(sink actions.Sink, opts ...actions.Option) *actions.Handlers {
	if sink == nil {
		sink = s.Status
	}
	base := []actions.Option{actions.WithWidget(s.Form), actions.WithChoices(s.choices)}
	return actions.New(s.Bridge, sink, append(base, opts...)...)
}

// Run executes one action. Actions on the same ticket run one at a time when
// serialization is enabled.
func (s *Session) Run(ctx context.Context, req actions.Request, sink actions.Sink) actions.Outcome {
	defer s.begin()()
	if s.serialize {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	log.Infof("Running %s on ticket %s", req.Action, s.TicketID)
	return s.Handlers(sink).Run(ctx, req)
}

// Activate runs the activation flow for the session
func (s *Session) Activate(ctx context.Context) (actions.Activation, error) {
	defer s.begin()()
	return s.Handlers(nil).Activate(ctx)
}

// Manager creates sessions on first use and drops them once idle for
// SessionIdleTimeout
type Manager struct {
	factory BridgeFactory
	cfg     *config.Config

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager
func NewManager(cfg *config.Config, factory BridgeFactory) *Manager {
	return &Manager{
		factory:  factory,
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session for ticketID, creating it if needed
func (m *Manager) Get(ticketID string) (*Session, error) {
	if err := ValidateTicketID(m.cfg.Backend, ticketID); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[ticketID]; ok {
		s.touch()
		return s, nil
	}
	form := bridge.NewForm(m.cfg.UISettableFields...)
	s := &Session{
		TicketID:  ticketID,
		Bridge:    m.factory(ticketID, form),
		Form:      form,
		Status:    status.NewReporter(m.cfg.StatusClearAfter),
		choices:   m.cfg.ChoicesEnabled,
		serialize: m.cfg.SerializeTicketActions,
	}
	s.touch()
	s.Status.Subscribe(func(snap status.Snapshot) {
		log.Debugf("Ticket %s status #%d: %q (%s)", ticketID, snap.Generation, snap.Message.Text, snap.Message.Color)
	})
	m.sessions[ticketID] = s
	log.Debugf("Opened session for ticket %s", ticketID)
	return s, nil
}

// Lookup returns an existing session without creating one
func (m *Manager) Lookup(ticketID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[ticketID]
	return s, ok
}

// Len returns the number of open sessions
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// EvictIdle closes sessions with nothing running that were last used at
// least SessionIdleTimeout before now. It returns how many were closed.
func (m *Manager) EvictIdle(now time.Time) int {
	idle := m.cfg.SessionIdleTimeout
	if idle <= 0 {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	evicted := 0
	for id, s := range m.sessions {
		if s.running.Load() > 0 || now.Sub(s.idleSince()) < idle {
			continue
		}
		s.Status.Close()
		delete(m.sessions, id)
		evicted++
		log.Debugf("Closed idle session for ticket %s", id)
	}
	return evicted
}

// RunJanitor evicts idle sessions every interval until ctx is done
func (m *Manager) RunJanitor(ctx context.Context, interval time.Duration) error {
	if m.cfg.SessionIdleTimeout <= 0 {
		return nil
	}
	if interval <= 0 {
		interval = m.cfg.SessionIdleTimeout / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if n := m.EvictIdle(now); n > 0 {
				log.Infof("Closed %d idle ticket sessions", n)
			}
		}
	}
}

// Close stops every session's pending status clear
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		s.Status.Close()
	}
}

// NewBridgeFactory builds the factory for the configured backend
func NewBridgeFactory(cfg *config.Config) (BridgeFactory, error) {
	registry, err := bridge.NewRegistry(bridge.TemplatesFromConfig(cfg), bridge.InstallationParams(cfg))
	if err != nil {
		return nil, err
	}
	invoker := bridge.NewInvoker(registry, cfg.RequestTimeout)

	switch cfg.Backend {
	case config.BackendFreshdesk, "":
		if cfg.FreshdeskURL == "" {
			log.Warnf("FRESHDESK_URL/FRESHDESK_DOMAIN is not set, ticket requests will fail")
		}
		return func(ticketID string, form *bridge.Form) bridge.Bridge {
			return bridge.NewHTTPBridge(invoker, ticketID, form)
		}, nil
	case config.BackendJira:
		issues, err := jira.NewAtlassianService(cfg)
		if err != nil {
			return nil, err
		}
		return func(ticketID string, form *bridge.Form) bridge.Bridge {
			return jira.NewBridge(issues, ticketID, invoker, form)
		}, nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Backend)
	}
}

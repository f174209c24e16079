// Package transport implements C9: per-session streaming transports laid
// over the bearer-gated protected HTTP surface. Grounded on the teacher's
// server.SessionManager (internal/mcpserver/server/session.go) for the
// mutex+map+cleanup-ticker shape.
package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/erauner12/vaultgw/internal/gateway/vaultfs/tools"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	sweepInterval = 1 * time.Minute
	idleTTL       = 30 * time.Minute
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrAtCapacity       = errors.New("transport at capacity")
)

// Session is one client's isolated tool-call context plus its optional
// open SSE stream. Owner is an opaque caller-supplied label for logging
// only: BearerMiddleware (C8) deliberately does not attach token claims
// to the request context (spec.md §4.8), so the transport layer has no
// verified identity to bind sessions to beyond "authorized or not".
type Session struct {
	ID        string
	Owner     string
	CreatedAt time.Time

	mu       sync.Mutex
	lastSeen time.Time
	stream   *Stream
	toolCtx  *tools.ToolContext
}

// ToolContext returns the session's isolated tool-handler context.
func (s *Session) ToolContext() *tools.ToolContext {
	return s.toolCtx
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// attachStream binds an SSE stream, closing and replacing any stream
// already attached to this session (a client establishing a new GET
// supersedes the old one rather than stacking listeners).
func (s *Session) attachStream(stream *Stream) {
	s.mu.Lock()
	old := s.stream
	s.stream = stream
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}
}

func (s *Session) detachStream(stream *Stream) {
	s.mu.Lock()
	if s.stream == stream {
		s.stream = nil
	}
	s.mu.Unlock()
}

func (s *Session) closeStream() {
	s.mu.Lock()
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()
	if stream != nil {
		stream.Close()
	}
}

// ToolContextFactory builds the isolated per-session resources a new
// Session needs, leaving the shared singletons (validator, commit
// coordinator) to the caller's closure.
type ToolContextFactory func(sessionID string) *tools.ToolContext

// Cleaner is the narrow interface the sweeper drives across C3–C5 and the
// rate limiters on its once-a-minute tick (spec.md §4.9).
type Cleaner interface {
	Cleanup()
}

// Manager owns the process-wide table of active sessions, their idle
// sweep, and graceful shutdown, mirroring the teacher's SessionManager.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	maxSessions int
	newToolCtx  ToolContextFactory
	cleaners    []Cleaner

	stopSweep chan struct{}
	sweepDone chan struct{}
}

// NewManager constructs a Manager and starts its idle-sweep goroutine.
// cleaners are additional components (the client registry, grant store,
// federation store, rate limiters) whose Cleanup is invoked on the same
// once-a-minute tick that sweeps idle transports.
func NewManager(maxSessions int, factory ToolContextFactory, cleaners ...Cleaner) *Manager {
	m := &Manager{
		sessions:    make(map[string]*Session),
		maxSessions: maxSessions,
		newToolCtx:  factory,
		cleaners:    cleaners,
		stopSweep:   make(chan struct{}),
		sweepDone:   make(chan struct{}),
	}
	go m.sweepExpired()
	return m
}

// Create starts a new session for an already bearer-authorized caller.
// Returns ErrAtCapacity once maxSessions sessions are active.
func (m *Manager) Create(owner string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= m.maxSessions {
		return nil, ErrAtCapacity
	}

	id, err := newSessionID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &Session{
		ID:        id,
		Owner:     owner,
		CreatedAt: now,
		lastSeen:  now,
	}
	session.toolCtx = m.newToolCtx(id)

	m.sessions[id] = session
	log.Debug().Str("sessionId", id).Msg("created transport session")
	return session, nil
}

// Get retrieves a session by ID and marks it as recently active.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	session, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	session.touch()
	return session, nil
}

// Terminate removes a session and closes any stream it holds open.
func (m *Manager) Terminate(id string) error {
	m.mu.Lock()
	session, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	session.closeStream()
	log.Debug().Str("sessionId", id).Msg("terminated transport session")
	return nil
}

// Count reports the number of active sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) sweepExpired() {
	defer close(m.sweepDone)
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopSweep:
			return
		case <-ticker.C:
			m.sweepOnce()
		}
	}
}

func (m *Manager) sweepOnce() {
	now := time.Now()
	var expired []*Session

	m.mu.Lock()
	for id, session := range m.sessions {
		if now.Sub(session.idleSince()) > idleTTL {
			expired = append(expired, session)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, session := range expired {
		session.closeStream()
	}
	if len(expired) > 0 {
		log.Info().Int("count", len(expired)).Msg("swept idle transport sessions")
	}

	for _, c := range m.cleaners {
		c.Cleanup()
	}
}

// Shutdown stops the sweep goroutine, clears the table, then closes every
// removed session's stream concurrently.
func (m *Manager) Shutdown(ctx context.Context) {
	close(m.stopSweep)
	<-m.sweepDone

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, session := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.closeStream()
		}(session)
	}
	wg.Wait()
}

// newSessionID mints a 128-bit session identifier, following the
// teacher's uuid.New().String() (internal/mcpserver/server/session.go).
func newSessionID() (string, error) {
	return uuid.New().String(), nil
}

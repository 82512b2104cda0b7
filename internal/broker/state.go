package broker

import (
	"sync"

	"github.com/yuiseki/acomm/internal/protocol"
	"github.com/yuiseki/acomm/internal/session"
)

// defaultMaxBacklog is used when a non-positive value is configured.
const defaultMaxBacklog = 100

// stateSnapshot is an immutable copy of BridgeState taken under its
// lock, safe to read without further synchronization.
type stateSnapshot struct {
	ActiveProvider protocol.Provider
	ActiveModel    string
	Backlog        []protocol.Event
	Session        *session.Manager
}

// BridgeState is the broker's single authoritative mutable state:
// active provider, active model, the replayable backlog, and the
// session manager handle. Every mutation happens under one mutex with
// a short critical section; per the broker's design, only the state
// maintainer task (and, for /clear, the command handler) writes it.
type BridgeState struct {
	mu             sync.Mutex
	activeProvider protocol.Provider
	activeModel    string
	backlog        []protocol.Event
	maxBacklog     int
	session        *session.Manager
}

// NewBridgeState constructs a fresh BridgeState with Gemini as the
// default provider and its default model, and a new session handle.
// maxBacklog <= 0 falls back to 100.
func NewBridgeState(maxBacklog int) *BridgeState {
	if maxBacklog <= 0 {
		maxBacklog = defaultMaxBacklog
	}
	model, _ := protocol.DefaultModelFor(protocol.ProviderGemini)
	return &BridgeState{
		activeProvider: protocol.ProviderGemini,
		activeModel:    model,
		maxBacklog:     maxBacklog,
		session:        session.New(),
	}
}

// Snapshot returns a consistent copy of the current state, including a
// cloned session manager handle, suitable for a connection handshake
// or a prompt's execution dispatch.
func (s *BridgeState) Snapshot() stateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	backlog := make([]protocol.Event, len(s.backlog))
	copy(backlog, s.backlog)
	return stateSnapshot{
		ActiveProvider: s.activeProvider,
		ActiveModel:    s.activeModel,
		Backlog:        backlog,
		Session:        s.session.Clone(),
	}
}

// ApplyProviderSwitched records a provider change and resets the
// active model to that provider's default (empty if it has none).
func (s *BridgeState) ApplyProviderSwitched(p protocol.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeProvider = p
	if m, ok := protocol.DefaultModelFor(p); ok {
		s.activeModel = m
	} else {
		s.activeModel = ""
	}
}

// ApplyModelSwitched records a model change, regardless of provider.
func (s *BridgeState) ApplyModelSwitched(m string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeModel = m
}

// AppendRetainable appends e to the backlog if its variant is
// retainable, evicting the oldest entries once the bound is exceeded.
// Non-retainable events are silently ignored.
func (s *BridgeState) AppendRetainable(e protocol.Event) {
	if !e.Retainable() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backlog = append(s.backlog, e)
	if len(s.backlog) > s.maxBacklog {
		s.backlog = s.backlog[len(s.backlog)-s.maxBacklog:]
	}
}

// Clear drops the backlog, replaces the session with a fresh one, and
// resets the active model to the current provider's default. It
// returns the new active model (empty if the current provider has
// none), for the caller to optionally broadcast a ModelSwitched.
func (s *BridgeState) Clear() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backlog = nil
	s.session = session.New()
	if m, ok := protocol.DefaultModelFor(s.activeProvider); ok {
		s.activeModel = m
	} else {
		s.activeModel = ""
	}
	return s.activeModel
}

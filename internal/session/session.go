// Package session implements the bridge's agent session manager
// contract: new()/clone()/execute(provider, model, text, on_chunk).
// Concrete AI-agent process executors (Gemini, Claude, Codex, OpenCode
// CLIs) are external collaborators outside this repository's scope;
// this package ships the interface plus the two in-repo stand-ins
// (Dummy, Mock) needed to exercise the broker end-to-end. Its streaming
// callback shape and one-client-per-backend layout follow a provider
// client pattern shared across the backend-specific packages it's
// modeled on.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yuiseki/acomm/internal/protocol"
)

// OnChunk receives one piece of partial model output. It may be called
// zero or more times before Execute returns.
type OnChunk func(chunk string)

// ErrProviderUnavailable is returned by Execute for any provider other
// than Dummy or Mock: real backend executors are not part of this
// repository.
var ErrProviderUnavailable = errors.New("session: provider has no executor in this build")

// dummyChunkDelay paces Dummy's word-by-word echo so streaming is
// observable rather than arriving as a single chunk.
const dummyChunkDelay = 15 * time.Millisecond

// Manager is the bridge's session handle. A Manager is cheap to Clone
// and safe for concurrent use; BridgeState holds exactly one, replaced
// wholesale by /clear.
type Manager struct {
	mu        sync.Mutex
	sessionID string
	mockReply string
	mockErr   error
}

// New constructs a fresh session handle with a new session id.
func New() *Manager {
	return &Manager{sessionID: uuid.NewString()}
}

// Clone returns a cheap, independently lockable snapshot sharing the
// same session id and mock configuration. The broker clones the
// manager under the state lock and invokes Execute on the clone
// outside the lock.
func (m *Manager) Clone() *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := &Manager{
		sessionID: m.sessionID,
		mockReply: m.mockReply,
		mockErr:   m.mockErr,
	}
	return clone
}

// SessionID returns the session handle's identifier, primarily useful
// for logging and tests.
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// SetMockResponse configures the canned response the Mock provider
// streams back. Intended for tests and manual exercising of
// end-to-end scenarios.
func (m *Manager) SetMockResponse(reply string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mockReply = reply
}

// SetMockError configures the Mock provider to fail with err instead
// of streaming a response. Pass nil to clear.
func (m *Manager) SetMockError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mockErr = err
}

// Execute runs provider with model/text, invoking onChunk for each
// partial output piece. It returns once all chunks have been emitted,
// or an error if the backend failed or is unavailable in this build.
func (m *Manager) Execute(ctx context.Context, provider protocol.Provider, model, text string, onChunk OnChunk) error {
	switch provider {
	case protocol.ProviderDummy:
		return executeDummy(ctx, text, onChunk)
	case protocol.ProviderMock:
		return m.executeMock(ctx, text, onChunk)
	default:
		return fmt.Errorf("%w: %s", ErrProviderUnavailable, provider)
	}
}

// executeDummy echoes text back, one word per chunk, pacing emission so
// the streaming path is exercised rather than short-circuited.
func executeDummy(ctx context.Context, text string, onChunk OnChunk) error {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	for i, w := range words {
		if i > 0 {
			onChunk(" ")
		}
		onChunk(w)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(dummyChunkDelay):
		}
	}
	return nil
}

// executeMock streams the configured canned reply (default "pong" if
// none was set), or returns the configured mock error.
func (m *Manager) executeMock(ctx context.Context, text string, onChunk OnChunk) error {
	m.mu.Lock()
	reply, err := m.mockReply, m.mockErr
	m.mu.Unlock()

	if err != nil {
		return err
	}
	if reply == "" {
		reply = "pong"
	}
	return executeDummy(ctx, reply, onChunk)
}

package chatbuffer

import (
	"strings"
	"sync"

	"github.com/yuiseki/acomm/internal/protocol"
)

// Deliverer sends one finalized message to a chat platform's channel.
// Adapters implement this over their own REST transport (Discord
// channel messages, Slack chat.postMessage, ntfy publish).
type Deliverer interface {
	Deliver(channel, message string) error
}

// SideTask starts a per-channel background task (e.g. a typing
// indicator loop) when a reply buffer opens, returning a function that
// stops it. Adapters without a side task may pass a no-op starter.
type SideTask func(channel string) (stop func())

// replyBuffer accumulates one in-flight prompt's streamed reply for a
// single channel.
type replyBuffer struct {
	content  strings.Builder
	provider string
	model    string
	stopSide func()
}

// Manager tracks one replyBuffer per channel and owns the outbound
// delivery lifecycle. A Manager is meant to be
// driven by a single goroutine (the adapter's event loop); it is not
// safe for concurrent Handle calls — state is owned by a single task,
// accessed only from that loop plus one mutex for the rare
// cross-goroutine read.
type Manager struct {
	prefix    string
	deliverer Deliverer
	startSide SideTask

	mu           sync.Mutex
	buffers      map[string]*replyBuffer
	syncComplete bool
	currentModel string
}

// NewManager constructs a Manager for channels beginning with prefix
// (e.g. "discord:"). deliverer sends finalized messages; startSide, if
// non-nil, is invoked when a buffer opens and its returned stop func is
// called when the buffer closes.
func NewManager(prefix string, deliverer Deliverer, startSide SideTask) *Manager {
	return &Manager{
		prefix:    prefix,
		deliverer: deliverer,
		startSide: startSide,
		buffers:   make(map[string]*replyBuffer),
	}
}

// Handle processes one bridge event. Events observed before
// BridgeSyncDone are the initial replay and must not trigger outbound
// delivery; Handle tracks this internally.
func (m *Manager) Handle(ev protocol.Event) error {
	if ev.BridgeSyncDone != nil {
		m.mu.Lock()
		m.syncComplete = true
		m.mu.Unlock()
		return nil
	}

	m.mu.Lock()
	synced := m.syncComplete
	m.mu.Unlock()
	if !synced {
		return nil
	}

	switch {
	case ev.Prompt != nil:
		return m.handlePrompt(ev.Prompt)
	case ev.AgentChunk != nil:
		return m.handleChunk(ev.AgentChunk)
	case ev.AgentDone != nil:
		return m.handleDone(ev.AgentDone)
	case ev.SystemMessage != nil:
		return m.handleSystemMessage(ev.SystemMessage)
	case ev.ModelSwitched != nil:
		m.mu.Lock()
		m.currentModel = ev.ModelSwitched.Model
		m.mu.Unlock()
		return nil
	default:
		return nil
	}
}

func (m *Manager) channelOf(ch *string) (string, bool) {
	if ch == nil || !strings.HasPrefix(*ch, m.prefix) {
		return "", false
	}
	return *ch, true
}

func (m *Manager) handlePrompt(p *protocol.PromptEvent) error {
	ch, ok := m.channelOf(p.Channel)
	if !ok {
		return nil
	}

	var provider string
	if p.Provider != nil {
		provider = string(*p.Provider)
	}

	m.mu.Lock()
	if old, exists := m.buffers[ch]; exists && old.stopSide != nil {
		old.stopSide()
	}
	rb := &replyBuffer{provider: provider, model: m.currentModel}
	if m.startSide != nil {
		rb.stopSide = m.startSide(ch)
	}
	m.buffers[ch] = rb
	m.mu.Unlock()
	return nil
}

func (m *Manager) handleChunk(c *protocol.AgentChunkEvent) error {
	ch, ok := m.channelOf(c.Channel)
	if !ok {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if rb, exists := m.buffers[ch]; exists {
		rb.content.WriteString(c.Chunk)
	}
	return nil
}

func (m *Manager) handleDone(d *protocol.AgentDoneEvent) error {
	ch, ok := m.channelOf(d.Channel)
	if !ok {
		return nil
	}

	m.mu.Lock()
	rb, exists := m.buffers[ch]
	if exists {
		delete(m.buffers, ch)
	}
	m.mu.Unlock()
	if !exists {
		return nil
	}
	if rb.stopSide != nil {
		rb.stopSide()
	}

	content := rb.content.String()
	if content == "" {
		return nil
	}

	final := ExtractFinalAnswer(content)
	formatted := FormatReply(final, rb.provider, rb.model)
	return m.deliverer.Deliver(ch, formatted)
}

func (m *Manager) handleSystemMessage(s *protocol.SystemMessageEvent) error {
	ch, ok := m.channelOf(s.Channel)
	if !ok {
		return nil
	}
	formatted := FormatReply(s.Msg, "", "")
	return m.deliverer.Deliver(ch, formatted)
}

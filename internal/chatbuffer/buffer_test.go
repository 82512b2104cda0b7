package chatbuffer

import (
	"sync"
	"testing"

	"github.com/yuiseki/acomm/internal/protocol"
)

type fakeDeliverer struct {
	mu       sync.Mutex
	messages map[string][]string
}

func newFakeDeliverer() *fakeDeliverer {
	return &fakeDeliverer{messages: make(map[string][]string)}
}

func (f *fakeDeliverer) Deliver(channel, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[channel] = append(f.messages[channel], message)
	return nil
}

func (f *fakeDeliverer) all(channel string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages[channel]...)
}

func TestManager_IgnoresReplayBeforeSyncDone(t *testing.T) {
	d := newFakeDeliverer()
	m := NewManager("discord:", d, nil)

	ch := "discord:1:2"
	provider := protocol.ProviderGemini
	_ = m.Handle(protocol.NewPrompt("hi", &provider, &ch))
	_ = m.Handle(protocol.NewAgentChunk("hello", &ch))
	_ = m.Handle(protocol.NewAgentDone(&ch))

	if got := d.all(ch); len(got) != 0 {
		t.Fatalf("expected no delivery before BridgeSyncDone, got %v", got)
	}
}

func TestManager_DeliversOneMessagePerPrompt(t *testing.T) {
	d := newFakeDeliverer()
	m := NewManager("discord:", d, nil)
	_ = m.Handle(protocol.NewBridgeSyncDone())

	ch := "discord:1:2"
	provider := protocol.ProviderGemini
	_ = m.Handle(protocol.NewModelSwitched("auto-gemini-3"))
	_ = m.Handle(protocol.NewPrompt("hi", &provider, &ch))
	_ = m.Handle(protocol.NewAgentChunk("hello ", &ch))
	_ = m.Handle(protocol.NewAgentChunk("world", &ch))
	_ = m.Handle(protocol.NewAgentDone(&ch))

	got := d.all(ch)
	if len(got) != 1 {
		t.Fatalf("expected exactly one delivered message, got %v", got)
	}
	want := "hello world\n\n__gemini:auto-gemini-3__"
	if got[0] != want {
		t.Errorf("got %q, want %q", got[0], want)
	}
}

func TestManager_IgnoresOtherPrefixes(t *testing.T) {
	d := newFakeDeliverer()
	m := NewManager("discord:", d, nil)
	_ = m.Handle(protocol.NewBridgeSyncDone())

	ch := "tui"
	_ = m.Handle(protocol.NewPrompt("hi", nil, &ch))
	_ = m.Handle(protocol.NewAgentChunk("hello", &ch))
	_ = m.Handle(protocol.NewAgentDone(&ch))

	if got := d.all(ch); len(got) != 0 {
		t.Fatalf("expected no delivery for non-matching prefix, got %v", got)
	}
}

func TestManager_EmptyContentSkipsDelivery(t *testing.T) {
	d := newFakeDeliverer()
	m := NewManager("discord:", d, nil)
	_ = m.Handle(protocol.NewBridgeSyncDone())

	ch := "discord:1:2"
	_ = m.Handle(protocol.NewPrompt("hi", nil, &ch))
	_ = m.Handle(protocol.NewAgentDone(&ch))

	if got := d.all(ch); len(got) != 0 {
		t.Fatalf("expected no delivery for empty content, got %v", got)
	}
}

func TestManager_SystemMessageDeliversImmediately(t *testing.T) {
	d := newFakeDeliverer()
	m := NewManager("discord:", d, nil)
	_ = m.Handle(protocol.NewBridgeSyncDone())

	ch := "discord:1:2"
	_ = m.Handle(protocol.NewSystemMessage("Cleared.", &ch))

	got := d.all(ch)
	if len(got) != 1 {
		t.Fatalf("expected one SystemMessage delivery, got %v", got)
	}
}

func TestManager_SideTaskLifecycle(t *testing.T) {
	d := newFakeDeliverer()
	var started, stopped int
	sideTask := func(channel string) func() {
		started++
		return func() { stopped++ }
	}
	m := NewManager("discord:", d, sideTask)
	_ = m.Handle(protocol.NewBridgeSyncDone())

	ch := "discord:1:2"
	_ = m.Handle(protocol.NewPrompt("hi", nil, &ch))
	if started != 1 {
		t.Fatalf("started = %d, want 1", started)
	}
	_ = m.Handle(protocol.NewAgentChunk("hi", &ch))
	_ = m.Handle(protocol.NewAgentDone(&ch))
	if stopped != 1 {
		t.Fatalf("stopped = %d, want 1", stopped)
	}
}

func TestManager_NewBufferStopsStaleSideTask(t *testing.T) {
	d := newFakeDeliverer()
	var stopped int
	sideTask := func(channel string) func() {
		return func() { stopped++ }
	}
	m := NewManager("discord:", d, sideTask)
	_ = m.Handle(protocol.NewBridgeSyncDone())

	ch := "discord:1:2"
	_ = m.Handle(protocol.NewPrompt("first", nil, &ch))
	_ = m.Handle(protocol.NewPrompt("second", nil, &ch)) // stale buffer replaced
	if stopped != 1 {
		t.Fatalf("stopped = %d, want 1 (stale side task stopped)", stopped)
	}
}

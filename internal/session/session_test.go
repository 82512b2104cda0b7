package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/yuiseki/acomm/internal/protocol"
)

func collect(t *testing.T, fn func(onChunk OnChunk) error) string {
	t.Helper()
	var sb strings.Builder
	if err := fn(func(chunk string) { sb.WriteString(chunk) }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return sb.String()
}

func TestNew_AssignsSessionID(t *testing.T) {
	m := New()
	if m.SessionID() == "" {
		t.Fatal("expected non-empty session id")
	}
}

func TestClone_SharesSessionID(t *testing.T) {
	m := New()
	c := m.Clone()
	if c.SessionID() != m.SessionID() {
		t.Errorf("clone session id = %q, want %q", c.SessionID(), m.SessionID())
	}
	if c == m {
		t.Error("Clone should return a distinct handle")
	}
}

func TestExecute_Dummy_EchoesWords(t *testing.T) {
	m := New()
	ctx := context.Background()
	got := collect(t, func(onChunk OnChunk) error {
		return m.Execute(ctx, protocol.ProviderDummy, "echo", "hello there friend", onChunk)
	})
	if got != "hello there friend" {
		t.Errorf("got %q, want %q", got, "hello there friend")
	}
}

func TestExecute_Dummy_EmptyText(t *testing.T) {
	m := New()
	got := collect(t, func(onChunk OnChunk) error {
		return m.Execute(context.Background(), protocol.ProviderDummy, "echo", "", onChunk)
	})
	if got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestExecute_Mock_DefaultReply(t *testing.T) {
	m := New()
	got := collect(t, func(onChunk OnChunk) error {
		return m.Execute(context.Background(), protocol.ProviderMock, "mock-model", "ping", onChunk)
	})
	if got != "pong" {
		t.Errorf("got %q, want %q", got, "pong")
	}
}

func TestExecute_Mock_ConfiguredReply(t *testing.T) {
	m := New()
	m.SetMockResponse("custom reply")
	got := collect(t, func(onChunk OnChunk) error {
		return m.Execute(context.Background(), protocol.ProviderMock, "mock-model", "ping", onChunk)
	})
	if got != "custom reply" {
		t.Errorf("got %q, want %q", got, "custom reply")
	}
}

func TestExecute_Mock_ConfiguredError(t *testing.T) {
	m := New()
	wantErr := errors.New("boom")
	m.SetMockError(wantErr)
	err := m.Execute(context.Background(), protocol.ProviderMock, "mock-model", "ping", func(string) {})
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}

func TestExecute_UnavailableProvider(t *testing.T) {
	m := New()
	err := m.Execute(context.Background(), protocol.ProviderGemini, "auto-gemini-3", "hi", func(string) {})
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("err = %v, want ErrProviderUnavailable", err)
	}
}

func TestExecute_ContextCancellation(t *testing.T) {
	m := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.Execute(ctx, protocol.ProviderDummy, "echo", "one two three", func(string) {})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestExecute_Dummy_RespectsDeadline(t *testing.T) {
	m := New()
	ctx, cancel := context.WithTimeout(context.Background(), 2*dummyChunkDelay+5*time.Millisecond)
	defer cancel()
	err := m.Execute(ctx, protocol.ProviderDummy, "echo", strings.Repeat("word ", 50), func(string) {})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
}

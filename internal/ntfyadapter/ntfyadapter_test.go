package ntfyadapter

import (
	"context"
	"testing"
)

func TestParseChannel(t *testing.T) {
	cases := []struct {
		in     string
		wantID string
		wantOK bool
	}{
		{"ntfy:abc123", "abc123", true},
		{"ntfy:", "", false},
		{"discord:1:2", "", false},
		{"tui", "", false},
	}
	for _, c := range cases {
		gotID, ok := parseChannel(c.in)
		if ok != c.wantOK {
			t.Fatalf("parseChannel(%q) ok = %v, want %v", c.in, ok, c.wantOK)
		}
		if ok && gotID != c.wantID {
			t.Errorf("parseChannel(%q) = %q, want %q", c.in, gotID, c.wantID)
		}
	}
}

func TestNewAdapter_Defaults(t *testing.T) {
	a := NewAdapter(Config{Topic: "acomm"})
	if a.logger == nil {
		t.Error("expected default logger to be set")
	}
	if a.httpClient == nil {
		t.Error("expected default http client to be set")
	}
	if a.buffers == nil {
		t.Error("expected chatbuffer manager to be constructed")
	}
}

func TestRun_RequiresTopic(t *testing.T) {
	a := NewAdapter(Config{SocketPath: "/nonexistent"})
	if err := a.Run(context.Background()); err == nil {
		t.Fatal("expected error when NTFY_TOPIC is missing")
	}
}

package slackadapter

import (
	"context"
	"testing"
)

func TestParseChannel(t *testing.T) {
	cases := []struct {
		in         string
		wantUser   string
		wantChanID string
		wantOK     bool
	}{
		{"slack:U123:C456", "U123", "C456", true},
		{"slack::C456", "", "C456", true},
		{"slack:U123:", "", "", false},
		{"slack:U123", "", "", false},
		{"discord:1:2", "", "", false},
		{"tui", "", "", false},
	}
	for _, c := range cases {
		gotUser, gotChan, ok := parseChannel(c.in)
		if ok != c.wantOK {
			t.Fatalf("parseChannel(%q) ok = %v, want %v", c.in, ok, c.wantOK)
		}
		if !ok {
			continue
		}
		if gotUser != c.wantUser || gotChan != c.wantChanID {
			t.Errorf("parseChannel(%q) = (%q, %q), want (%q, %q)", c.in, gotUser, gotChan, c.wantUser, c.wantChanID)
		}
	}
}

func TestNewAdapter_Defaults(t *testing.T) {
	a := NewAdapter(Config{AppToken: "xapp", BotToken: "xoxb"})
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

func TestRun_RequiresTokens(t *testing.T) {
	a := NewAdapter(Config{SocketPath: "/nonexistent"})
	if err := a.Run(context.Background()); err == nil {
		t.Fatal("expected error when tokens are missing")
	}
}

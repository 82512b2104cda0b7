package discordgw

import "testing"

func TestParseChannel(t *testing.T) {
	cases := []struct {
		in          string
		wantChannel string
		wantMessage string
		wantOK      bool
	}{
		{"discord:111:222", "111", "222", true},
		{"discord:111:", "111", "", true},
		{"discord:", "", "", false},
		{"tui", "", "", false},
		{"slack:111:222", "", "", false},
	}
	for _, c := range cases {
		gotChannel, gotMessage, ok := parseChannel(c.in)
		if ok != c.wantOK {
			t.Fatalf("parseChannel(%q) ok = %v, want %v", c.in, ok, c.wantOK)
		}
		if !ok {
			continue
		}
		if gotChannel != c.wantChannel || gotMessage != c.wantMessage {
			t.Errorf("parseChannel(%q) = (%q, %q), want (%q, %q)", c.in, gotChannel, gotMessage, c.wantChannel, c.wantMessage)
		}
	}
}

func TestNewAdapter_Defaults(t *testing.T) {
	a := NewAdapter(Config{Token: "tok"})
	if a.logger == nil {
		t.Error("expected default logger to be set")
	}
	if a.httpClient == nil {
		t.Error("expected default http client to be set")
	}
	if a.allowlist != nil {
		t.Error("expected nil allowlist when AllowedUserIDs is empty")
	}
	if a.presence != "online" {
		t.Errorf("presence = %q, want %q", a.presence, "online")
	}
}

func TestNewAdapter_BuildsAllowlist(t *testing.T) {
	a := NewAdapter(Config{Token: "tok", AllowedUserIDs: []string{"1", "2"}})
	if len(a.allowlist) != 2 {
		t.Fatalf("allowlist len = %d, want 2", len(a.allowlist))
	}
	if _, ok := a.allowlist["1"]; !ok {
		t.Error("expected \"1\" in allowlist")
	}
}

func TestPresencePolicy_TracksOpenBuffers(t *testing.T) {
	a := NewAdapter(Config{Token: "tok"})

	a.onBufferOpened()
	if a.presence != "dnd" {
		t.Fatalf("presence = %q after first open, want dnd", a.presence)
	}

	a.onBufferOpened()
	if a.presence != "dnd" {
		t.Fatalf("presence = %q after second open, want still dnd", a.presence)
	}

	a.onBufferClosed()
	if a.presence != "dnd" {
		t.Fatalf("presence = %q with one buffer still open, want dnd", a.presence)
	}

	a.onBufferClosed()
	if a.presence != "online" {
		t.Fatalf("presence = %q after all buffers drained, want online", a.presence)
	}
}

package protocol

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	ch := "test_channel"
	provider := ProviderMock

	cases := []Event{
		NewPrompt("hello", &provider, &ch),
		NewPrompt("hello", nil, nil),
		NewAgentChunk("tok", &ch),
		NewAgentDone(&ch),
		NewAgentDone(nil),
		NewStatusUpdate(true, &ch),
		NewSystemMessage("hi", &ch),
		NewSyncContext("ctx blob"),
		NewProviderSwitched(ProviderGemini),
		NewModelSwitched("auto-gemini-3"),
		NewBridgeSyncDone(),
	}

	for i, want := range cases {
		line, err := EncodeLine(want)
		if err != nil {
			t.Fatalf("case %d: EncodeLine: %v", i, err)
		}
		got, err := DecodeLine(bytes.TrimRight(line, "\n"))
		if err != nil {
			t.Fatalf("case %d: DecodeLine: %v", i, err)
		}
		gotJSON, _ := json.Marshal(got)
		wantJSON, _ := json.Marshal(want)
		if string(gotJSON) != string(wantJSON) {
			t.Errorf("case %d: round trip mismatch\n got: %s\nwant: %s", i, gotJSON, wantJSON)
		}
	}
}

func TestEncodeSingleKeyObject(t *testing.T) {
	line, err := EncodeLine(NewAgentDone(nil))
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimRight(line, "\n"), &raw); err != nil {
		t.Fatal(err)
	}
	if len(raw) != 1 {
		t.Fatalf("expected exactly one key, got %d: %v", len(raw), raw)
	}
	if _, ok := raw["AgentDone"]; !ok {
		t.Errorf("expected AgentDone key, got %v", raw)
	}
}

func TestDecodeMalformedLine(t *testing.T) {
	_, err := DecodeLine([]byte("not json"))
	if err == nil {
		t.Fatal("expected error decoding malformed line")
	}
}

func TestDecodeUnknownVariant(t *testing.T) {
	_, err := DecodeLine([]byte(`{"TotallyUnknown":{}}`))
	if err == nil {
		t.Fatal("expected error decoding unknown variant")
	}
}

func TestDecodeMultiKeyRejected(t *testing.T) {
	_, err := DecodeLine([]byte(`{"AgentDone":{},"BridgeSyncDone":{}}`))
	if err == nil {
		t.Fatal("expected error decoding multi-key object")
	}
}

func TestUnknownFieldsIgnored(t *testing.T) {
	got, err := DecodeLine([]byte(`{"Prompt":{"text":"hi","futurefield":"x"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Prompt == nil || got.Prompt.Text != "hi" {
		t.Errorf("expected Prompt.Text=hi, got %+v", got.Prompt)
	}
}

func TestRetainable(t *testing.T) {
	ch := "c"
	retainable := []Event{
		NewPrompt("x", nil, &ch),
		NewAgentChunk("x", &ch),
		NewAgentDone(&ch),
		NewSystemMessage("x", &ch),
		NewProviderSwitched(ProviderGemini),
		NewModelSwitched("m"),
	}
	for _, e := range retainable {
		if !e.Retainable() {
			t.Errorf("%s should be retainable", e.Variant())
		}
	}

	transient := []Event{
		NewStatusUpdate(true, &ch),
		NewSyncContext("ctx"),
		NewBridgeSyncDone(),
	}
	for _, e := range transient {
		if e.Retainable() {
			t.Errorf("%s should not be retainable", e.Variant())
		}
	}
}

func TestChannel(t *testing.T) {
	ch := "discord:1:2"
	e := NewAgentChunk("x", &ch)
	got, ok := e.Channel()
	if !ok || got != ch {
		t.Errorf("Channel() = (%q, %v), want (%q, true)", got, ok, ch)
	}

	e2 := NewSyncContext("x")
	if _, ok := e2.Channel(); ok {
		t.Error("SyncContext should not have a channel")
	}
}

func TestDefaultModelFor(t *testing.T) {
	cases := []struct {
		p      Provider
		want   string
		wantOk bool
	}{
		{ProviderGemini, "auto-gemini-3", true},
		{ProviderClaude, "claude-sonnet-4-6", true},
		{ProviderCodex, "gpt-5.3-codex", true},
		{ProviderDummy, "echo", true},
		{ProviderMock, "mock-model", true},
		{ProviderOpenCode, "", false},
	}
	for _, c := range cases {
		got, ok := DefaultModelFor(c.p)
		if got != c.want || ok != c.wantOk {
			t.Errorf("DefaultModelFor(%s) = (%q, %v), want (%q, %v)", c.p, got, ok, c.want, c.wantOk)
		}
	}
}

func TestParseProvider(t *testing.T) {
	cases := []struct {
		in     string
		want   Provider
		wantOk bool
	}{
		{"gemini", ProviderGemini, true},
		{"claude", ProviderClaude, true},
		{"codex", ProviderCodex, true},
		{"opencode", ProviderOpenCode, true},
		{"dummy", ProviderDummy, true},
		{"dummy-bot", ProviderDummy, true},
		{"dummybot", ProviderDummy, true},
		{"mock", ProviderMock, true},
		{"nonsense", "", false},
	}
	for _, c := range cases {
		got, ok := ParseProvider(c.in)
		if got != c.want || ok != c.wantOk {
			t.Errorf("ParseProvider(%q) = (%q, %v), want (%q, %v)", c.in, got, ok, c.want, c.wantOk)
		}
	}
}

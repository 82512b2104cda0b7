package discordgw

import (
	"encoding/json"
	"testing"
)

func TestIdentifyData_WireShape(t *testing.T) {
	d := identifyData{
		Token:   "tok",
		Intents: intentGuildMessages | intentDirectMessages,
		Properties: identifyProperties{
			OS:      "linux",
			Browser: "acomm",
			Device:  "acomm",
		},
	}
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var round map[string]interface{}
	if err := json.Unmarshal(b, &round); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if round["token"] != "tok" {
		t.Errorf("token = %v, want tok", round["token"])
	}
	wantIntents := float64(1<<9 | 1<<12)
	if round["intents"] != wantIntents {
		t.Errorf("intents = %v, want %v", round["intents"], wantIntents)
	}
	props, ok := round["properties"].(map[string]interface{})
	if !ok {
		t.Fatalf("properties missing or wrong type: %v", round["properties"])
	}
	if props["os"] != "linux" || props["browser"] != "acomm" || props["device"] != "acomm" {
		t.Errorf("unexpected properties: %v", props)
	}
}

func TestIntents_ExcludesMessageContent(t *testing.T) {
	const messageContentIntent = 1 << 15
	got := intentGuildMessages | intentDirectMessages
	if got&messageContentIntent != 0 {
		t.Errorf("intents %d unexpectedly include MESSAGE_CONTENT", got)
	}
}

func TestMustMarshal_SequenceNumber(t *testing.T) {
	raw := mustMarshal(int64(42))
	if string(raw) != "42" {
		t.Errorf("mustMarshal(42) = %s, want 42", raw)
	}
}

func TestGatewayPayload_RoundTrip(t *testing.T) {
	p := gatewayPayload{Op: opDispatch, D: mustMarshal(readyData{User: readyUser{ID: "1"}}), T: "READY"}
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got gatewayPayload
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Op != opDispatch || got.T != "READY" {
		t.Errorf("got %+v", got)
	}
	var ready readyData
	if err := json.Unmarshal(got.D, &ready); err != nil {
		t.Fatalf("unmarshal D: %v", err)
	}
	if ready.User.ID != "1" {
		t.Errorf("ready.User.ID = %q, want 1", ready.User.ID)
	}
}

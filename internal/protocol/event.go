// Package protocol defines the acomm bridge's wire event union and its
// line-delimited JSON codec.
//
// Events are encoded one per line as a single-key JSON object: the
// outer key names the variant, the value holds that variant's fields.
// This hand-rolled encoding (rather than a generic tagged-union or
// sum-type library) matches the wire format the bridge must remain
// compatible with; no such library is used anywhere else in the
// surrounding codebase either, so the stdlib encoding/json approach
// below is used throughout.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PromptEvent carries ingress user text, or a slash command when Text
// begins with "/".
type PromptEvent struct {
	Text     string    `json:"text"`
	Provider *Provider `json:"provider,omitempty"`
	Channel  *string   `json:"channel,omitempty"`
}

// AgentChunkEvent carries one piece of partial model output. Chunks for
// a channel concatenate in emission order.
type AgentChunkEvent struct {
	Chunk   string  `json:"chunk"`
	Channel *string `json:"channel,omitempty"`
}

// AgentDoneEvent terminates one prompt's reply stream.
type AgentDoneEvent struct {
	Channel *string `json:"channel,omitempty"`
}

// StatusUpdateEvent is a spinner/presence hint.
type StatusUpdateEvent struct {
	IsProcessing bool    `json:"is_processing"`
	Channel      *string `json:"channel,omitempty"`
}

// SystemMessageEvent is an out-of-band notice.
type SystemMessageEvent struct {
	Msg     string  `json:"msg"`
	Channel *string `json:"channel,omitempty"`
}

// SyncContextEvent delivers the initial daily-context blob on connect.
type SyncContextEvent struct {
	Context string `json:"context"`
}

// ProviderSwitchedEvent is the authoritative provider change notice.
type ProviderSwitchedEvent struct {
	Provider Provider `json:"provider"`
}

// ModelSwitchedEvent is the authoritative model change notice.
type ModelSwitchedEvent struct {
	Model string `json:"model"`
}

// BridgeSyncDoneEvent is the sentinel ending the initial replay.
type BridgeSyncDoneEvent struct{}

// Event is a tagged union: exactly one field is non-nil per value.
// Construct instances with the NewXxx helpers rather than populating
// the struct directly, so the single-active-variant invariant holds.
type Event struct {
	Prompt           *PromptEvent
	AgentChunk       *AgentChunkEvent
	AgentDone        *AgentDoneEvent
	StatusUpdate     *StatusUpdateEvent
	SystemMessage    *SystemMessageEvent
	SyncContext      *SyncContextEvent
	ProviderSwitched *ProviderSwitchedEvent
	ModelSwitched    *ModelSwitchedEvent
	BridgeSyncDone   *BridgeSyncDoneEvent
}

func NewPrompt(text string, provider *Provider, channel *string) Event {
	return Event{Prompt: &PromptEvent{Text: text, Provider: provider, Channel: channel}}
}

func NewAgentChunk(chunk string, channel *string) Event {
	return Event{AgentChunk: &AgentChunkEvent{Chunk: chunk, Channel: channel}}
}

func NewAgentDone(channel *string) Event {
	return Event{AgentDone: &AgentDoneEvent{Channel: channel}}
}

func NewStatusUpdate(isProcessing bool, channel *string) Event {
	return Event{StatusUpdate: &StatusUpdateEvent{IsProcessing: isProcessing, Channel: channel}}
}

func NewSystemMessage(msg string, channel *string) Event {
	return Event{SystemMessage: &SystemMessageEvent{Msg: msg, Channel: channel}}
}

func NewSyncContext(context string) Event {
	return Event{SyncContext: &SyncContextEvent{Context: context}}
}

func NewProviderSwitched(p Provider) Event {
	return Event{ProviderSwitched: &ProviderSwitchedEvent{Provider: p}}
}

func NewModelSwitched(model string) Event {
	return Event{ModelSwitched: &ModelSwitchedEvent{Model: model}}
}

func NewBridgeSyncDone() Event {
	return Event{BridgeSyncDone: &BridgeSyncDoneEvent{}}
}

// Channel returns the routing channel carried by variants that have
// one, or ("", false) for variants without a channel field.
func (e Event) Channel() (string, bool) {
	var ch *string
	switch {
	case e.Prompt != nil:
		ch = e.Prompt.Channel
	case e.AgentChunk != nil:
		ch = e.AgentChunk.Channel
	case e.AgentDone != nil:
		ch = e.AgentDone.Channel
	case e.StatusUpdate != nil:
		ch = e.StatusUpdate.Channel
	case e.SystemMessage != nil:
		ch = e.SystemMessage.Channel
	default:
		return "", false
	}
	if ch == nil {
		return "", false
	}
	return *ch, true
}

// Variant returns the wire tag name of the active variant, or "" if no
// variant is set (a zero-value Event, which never appears on the wire).
func (e Event) Variant() string {
	switch {
	case e.Prompt != nil:
		return "Prompt"
	case e.AgentChunk != nil:
		return "AgentChunk"
	case e.AgentDone != nil:
		return "AgentDone"
	case e.StatusUpdate != nil:
		return "StatusUpdate"
	case e.SystemMessage != nil:
		return "SystemMessage"
	case e.SyncContext != nil:
		return "SyncContext"
	case e.ProviderSwitched != nil:
		return "ProviderSwitched"
	case e.ModelSwitched != nil:
		return "ModelSwitched"
	case e.BridgeSyncDone != nil:
		return "BridgeSyncDone"
	default:
		return ""
	}
}

// Retainable reports whether this event's variant belongs in the
// bounded backlog. StatusUpdate, SyncContext, and BridgeSyncDone are
// transient and are never retained.
func (e Event) Retainable() bool {
	switch {
	case e.Prompt != nil, e.AgentChunk != nil, e.AgentDone != nil,
		e.SystemMessage != nil, e.ProviderSwitched != nil, e.ModelSwitched != nil:
		return true
	default:
		return false
	}
}

// MarshalJSON encodes the active variant as {"<Variant>": {...fields}}.
func (e Event) MarshalJSON() ([]byte, error) {
	var key string
	var payload any

	switch {
	case e.Prompt != nil:
		key, payload = "Prompt", e.Prompt
	case e.AgentChunk != nil:
		key, payload = "AgentChunk", e.AgentChunk
	case e.AgentDone != nil:
		key, payload = "AgentDone", e.AgentDone
	case e.StatusUpdate != nil:
		key, payload = "StatusUpdate", e.StatusUpdate
	case e.SystemMessage != nil:
		key, payload = "SystemMessage", e.SystemMessage
	case e.SyncContext != nil:
		key, payload = "SyncContext", e.SyncContext
	case e.ProviderSwitched != nil:
		key, payload = "ProviderSwitched", e.ProviderSwitched
	case e.ModelSwitched != nil:
		key, payload = "ModelSwitched", e.ModelSwitched
	case e.BridgeSyncDone != nil:
		key, payload = "BridgeSyncDone", e.BridgeSyncDone
	default:
		return nil, fmt.Errorf("protocol: event has no active variant")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	keyJSON, _ := json.Marshal(key)
	buf.Write(keyJSON)
	buf.WriteByte(':')
	buf.Write(body)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a single-key variant object into the matching
// field. Exactly one top-level key is expected; unknown variant names
// or multi-key objects are rejected so that malformed lines can be
// skipped by the caller rather than silently misinterpreted.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("protocol: expected exactly one variant key, got %d", len(raw))
	}

	for key, body := range raw {
		switch key {
		case "Prompt":
			var v PromptEvent
			if err := json.Unmarshal(body, &v); err != nil {
				return err
			}
			e.Prompt = &v
		case "AgentChunk":
			var v AgentChunkEvent
			if err := json.Unmarshal(body, &v); err != nil {
				return err
			}
			e.AgentChunk = &v
		case "AgentDone":
			var v AgentDoneEvent
			if err := json.Unmarshal(body, &v); err != nil {
				return err
			}
			e.AgentDone = &v
		case "StatusUpdate":
			var v StatusUpdateEvent
			if err := json.Unmarshal(body, &v); err != nil {
				return err
			}
			e.StatusUpdate = &v
		case "SystemMessage":
			var v SystemMessageEvent
			if err := json.Unmarshal(body, &v); err != nil {
				return err
			}
			e.SystemMessage = &v
		case "SyncContext":
			var v SyncContextEvent
			if err := json.Unmarshal(body, &v); err != nil {
				return err
			}
			e.SyncContext = &v
		case "ProviderSwitched":
			var v ProviderSwitchedEvent
			if err := json.Unmarshal(body, &v); err != nil {
				return err
			}
			e.ProviderSwitched = &v
		case "ModelSwitched":
			var v ModelSwitchedEvent
			if err := json.Unmarshal(body, &v); err != nil {
				return err
			}
			e.ModelSwitched = &v
		case "BridgeSyncDone":
			e.BridgeSyncDone = &BridgeSyncDoneEvent{}
		default:
			return fmt.Errorf("protocol: unknown event variant %q", key)
		}
	}
	return nil
}

// StrPtr is a small convenience for constructing optional channel
// fields inline, e.g. protocol.NewPrompt(text, nil, protocol.StrPtr("tui")).
func StrPtr(s string) *string {
	return &s
}

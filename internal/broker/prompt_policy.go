package broker

import (
	"context"
	"fmt"
	"strings"

	"github.com/yuiseki/acomm/internal/protocol"
)

// magicPreset recognizes the discord-only provider/model shortcut
// text. Returns the target provider and true if text is one of the
// recognized presets.
func magicPreset(text string) (protocol.Provider, bool) {
	switch text {
	case "p-gemini":
		return protocol.ProviderGemini, true
	case "p-codex":
		return protocol.ProviderCodex, true
	case "p-claude":
		return protocol.ProviderClaude, true
	default:
		return "", false
	}
}

// handlePrompt applies the prompt policy to an inbound Prompt event:
// the discord magic preset short-circuit, slash-command dispatch, or
// normal provider/model resolution followed by a detached execution
// task.
func (b *Broker) handlePrompt(ctx context.Context, p protocol.PromptEvent) {
	text := strings.TrimSpace(p.Text)

	if p.Channel != nil && strings.HasPrefix(*p.Channel, "discord:") {
		if provider, ok := magicPreset(text); ok {
			b.hub.Publish(protocol.NewProviderSwitched(provider))
			model, hasModel := protocol.DefaultModelFor(provider)
			if hasModel {
				b.hub.Publish(protocol.NewModelSwitched(model))
			}
			msg := fmt.Sprintf("Switched to %s:%s.", provider, model)
			b.hub.Publish(protocol.NewSystemMessage(msg, p.Channel))
			return
		}
	}

	if strings.HasPrefix(text, "/") {
		b.cmd.handle(ctx, text)
		return
	}

	snap := b.state.Snapshot()
	selectedProvider := snap.ActiveProvider
	if p.Provider != nil {
		selectedProvider = *p.Provider
	}

	var selectedModel string
	if selectedProvider == snap.ActiveProvider {
		selectedModel = snap.ActiveModel
	} else {
		selectedModel, _ = protocol.DefaultModelFor(selectedProvider)
	}

	b.hub.Publish(protocol.NewPrompt(text, &selectedProvider, p.Channel))
	b.hub.Publish(protocol.NewStatusUpdate(true, p.Channel))

	go b.runExecution(ctx, snap, selectedProvider, selectedModel, text, p.Channel)
}

// runExecution invokes the session manager for one prompt, streaming
// AgentChunk events and always terminating with AgentDone and
// StatusUpdate{false}, regardless of success or failure.
func (b *Broker) runExecution(ctx context.Context, snap stateSnapshot, provider protocol.Provider, model, text string, channel *string) {
	onChunk := func(chunk string) {
		b.hub.Publish(protocol.NewAgentChunk(chunk, channel))
	}

	err := snap.Session.Execute(ctx, provider, model, text, onChunk)
	if err != nil {
		msg := fmt.Sprintf("Agent execution failed: %v", err)
		b.hub.Publish(protocol.NewSystemMessage(msg, channel))
	}
	b.hub.Publish(protocol.NewAgentDone(channel))
	b.hub.Publish(protocol.NewStatusUpdate(false, channel))
}

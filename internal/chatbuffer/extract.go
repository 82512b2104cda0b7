// Package chatbuffer implements the chat-platform reply-buffer adapter
// pattern shared by the Discord, Slack, and ntfy adapters: a per-channel
// accumulator from Prompt to AgentDone, final-answer extraction, and
// char-count-safe suffix truncation. The approach generalizes a
// per-sender state tracking pattern (mutex-protected maps, one side
// task per conversation) from a single-transport chat bridge to any
// chat-platform adapter.
package chatbuffer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yuiseki/acomm/internal/protocol"
)

// MaxReplyChars is the safe message-length cap, counted in Unicode
// code points (runes), used across all supported platforms — derived
// from Discord's 2000-character hard limit with headroom.
const MaxReplyChars = 1900

// minSubstantiveChars is the minimum candidate length (in runes) that
// ExtractFinalAnswer considers meaningful when walking backward
// through paragraph separators.
const minSubstantiveChars = 30

// ExtractFinalAnswer reduces a concatenated agent output to the
// message that should actually be delivered. The result never
// exceeds MaxReplyChars runes.
func ExtractFinalAnswer(text string) string {
	trimmed := strings.TrimRightFunc(text, unicode.IsSpace)
	runes := []rune(trimmed)
	if len(runes) <= MaxReplyChars {
		return trimmed
	}

	parts := strings.Split(trimmed, "\n\n")
	for i := len(parts) - 1; i >= 1; i-- {
		candidate := strings.TrimSpace(strings.Join(parts[i:], "\n\n"))
		candRunes := []rune(candidate)
		if len(candRunes) < minSubstantiveChars {
			continue
		}
		if len(candRunes) <= MaxReplyChars {
			return candidate
		}
		return "…" + string(candRunes[len(candRunes)-(MaxReplyChars-1):])
	}

	return "…" + string(runes[len(runes)-(MaxReplyChars-1):])
}

// FormatReply appends a "__provider:model__" suffix to body with
// char-count-safe truncation. provider/model default to "gemini" and
// its default model when empty.
func FormatReply(body, provider, model string) string {
	if provider == "" {
		provider = string(protocol.ProviderGemini)
	}
	if model == "" {
		if m, ok := protocol.DefaultModelFor(protocol.Provider(provider)); ok {
			model = m
		}
	}

	suffix := fmt.Sprintf("__%s:%s__", provider, model)
	reserved := utf8.RuneCountInString(suffix) + utf8.RuneCountInString("\n\n")

	if reserved >= MaxReplyChars {
		sufRunes := []rune(suffix)
		if len(sufRunes) > MaxReplyChars {
			return string(sufRunes[len(sufRunes)-MaxReplyChars:])
		}
		return suffix
	}

	budget := MaxReplyChars - reserved
	bodyRunes := []rune(body)
	if len(bodyRunes) <= budget {
		return body + "\n\n" + suffix
	}

	truncated := string(bodyRunes[:budget-1]) + "…"
	return truncated + "\n\n" + suffix
}

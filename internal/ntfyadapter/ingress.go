package ntfyadapter

import "strings"

// acceptMessage filters ntfy's stream for genuine inbound prompts:
// only "message" events with non-empty text that doesn't carry this
// adapter's own self-loop-guard prefix are forwarded to the bridge.
func acceptMessage(msg ntfyMessage) bool {
	if msg.Event != "message" {
		return false
	}
	if msg.Message == "" {
		return false
	}
	if strings.HasPrefix(msg.Message, selfLoopPrefix) {
		return false
	}
	return true
}

package discordgw

import "strings"

// acceptMessage applies the ingress filter: reject messages authored
// by the bot itself, by any other bot account, with empty trimmed
// content, or (when an allowlist is configured) by an author not in it.
func (a *Adapter) acceptMessage(msg messageCreateData) bool {
	if a.botUserID != "" && msg.Author.ID == a.botUserID {
		return false
	}
	if msg.Author.Bot {
		return false
	}
	if strings.TrimSpace(msg.Content) == "" {
		return false
	}
	if a.allowlist != nil {
		if _, ok := a.allowlist[msg.Author.ID]; !ok {
			a.logger.Debug("rejecting message from non-allowlisted author", "author_id", msg.Author.ID)
			return false
		}
	}
	return true
}

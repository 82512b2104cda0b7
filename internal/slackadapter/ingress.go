package slackadapter

// acceptMessage applies the self-bot loop guard for Slack: reject a
// message event carrying a bot_id or a subtype (both of which are set
// on the bridge's own posted replies and on other bot/system
// messages), mirroring Discord's bot_user_id filter and ntfy's
// "[bot] " prefix filter.
func acceptMessage(ev slackMessageEvent) bool {
	if ev.BotID != "" {
		return false
	}
	if ev.Subtype != "" {
		return false
	}
	return true
}

package discordgw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/yuiseki/acomm/internal/protocol"
)

// typingInterval matches Discord's ~10s typing-indicator expiry with
// headroom, re-sent for as long as a reply buffer stays open.
const typingInterval = 8 * time.Second

type sendMessageBody struct {
	Content string `json:"content"`
}

// sendMessage posts message to channelID via the REST API.
func (a *Adapter) sendMessage(channelID, message string) error {
	body, err := json.Marshal(sendMessageBody{Content: message})
	if err != nil {
		return fmt.Errorf("discordgw: encode message body: %w", err)
	}
	url := fmt.Sprintf("%s/channels/%s/messages", restBase, channelID)
	return a.restPost(url, body)
}

// sendTypingREST triggers the typing indicator for channelID.
func (a *Adapter) sendTypingREST(channelID string) error {
	url := fmt.Sprintf("%s/channels/%s/typing", restBase, channelID)
	return a.restPost(url, nil)
}

func (a *Adapter) restPost(url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discordgw: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+a.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discordgw: REST call to %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("discordgw: REST call to %s: status %d", url, resp.StatusCode)
	}
	return nil
}

// startTyping is the chatbuffer.SideTask wired into the reply buffer
// manager: it tracks the open-buffer count for the dnd/online presence
// policy and starts a typing-indicator loop for the buffer's channel.
func (a *Adapter) startTyping(channel string) func() {
	a.onBufferOpened()

	channelID, _, ok := parseChannel(channel)
	if !ok {
		return func() { a.onBufferClosed() }
	}

	ctx, cancel := context.WithCancel(context.Background())
	go a.typingLoop(ctx, channelID)

	return func() {
		cancel()
		a.onBufferClosed()
	}
}

func (a *Adapter) typingLoop(ctx context.Context, channelID string) {
	if err := a.sendTypingREST(channelID); err != nil {
		a.logger.Debug("typing indicator failed", "channel_id", channelID, "error", err)
	}
	ticker := time.NewTicker(typingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.sendTypingREST(channelID); err != nil {
				a.logger.Debug("typing indicator failed", "channel_id", channelID, "error", err)
			}
		}
	}
}

// onBufferOpened and onBufferClosed implement the presence policy: dnd
// while any reply is in flight across all channels, online once every
// buffer has drained.
func (a *Adapter) onBufferOpened() {
	if a.openBuffers.Add(1) == 1 {
		a.setPresenceStatus("dnd")
	}
}

func (a *Adapter) onBufferClosed() {
	if a.openBuffers.Add(-1) == 0 {
		a.setPresenceStatus("online")
	}
}

func (a *Adapter) setPresenceStatus(status string) {
	a.presenceMu.Lock()
	unchanged := a.presence == status
	a.presence = status
	a.presenceMu.Unlock()
	if unchanged {
		return
	}
	if err := a.sendPresence(presenceUpdateData{Status: status, Activities: []interface{}{}}); err != nil {
		a.logger.Debug("presence update failed", "status", status, "error", err)
	}
}

// writePromptLine encodes a Prompt event for channel and writes it to
// sock as a single LF-delimited line.
func writePromptLine(sock net.Conn, text, channel string) error {
	return protocol.WriteLine(sock, protocol.NewPrompt(text, nil, &channel))
}

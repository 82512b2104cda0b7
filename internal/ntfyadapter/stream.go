package ntfyadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	"github.com/yuiseki/acomm/internal/config"
	"github.com/yuiseki/acomm/internal/protocol"
)

const ntfyBase = "https://ntfy.sh"

// ntfyMessage is one line of ntfy's JSON stream format.
type ntfyMessage struct {
	ID      string `json:"id"`
	Time    int64  `json:"time"`
	Event   string `json:"event"`
	Topic   string `json:"topic"`
	Message string `json:"message"`
	Title   string `json:"title"`
}

// runSubscription opens the topic's line-delimited JSON stream and
// forwards accepted messages to the bridge socket as Prompt events.
// It blocks until ctx is cancelled or the stream ends unrecoverably;
// reconnection is the caller's job.
func (a *Adapter) runSubscription(ctx context.Context, sock net.Conn) error {
	url := fmt.Sprintf("%s/%s/json", ntfyBase, a.cfg.Topic)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("ntfyadapter: build subscribe request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ntfyadapter: subscribe to %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("ntfyadapter: subscribe to %s: status %d", url, resp.StatusCode)
	}

	scanner := protocol.NewLineScanner(resp.Body)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		a.logger.Log(ctx, config.LevelTrace, "ntfy stream line received", "bytes", len(line))
		var msg ntfyMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			a.logger.Warn("discarding malformed ntfy stream line", "error", err)
			continue
		}
		a.handleMessage(sock, msg)
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("ntfyadapter: read ntfy stream: %w", err)
	}
	return nil
}

func (a *Adapter) handleMessage(sock net.Conn, msg ntfyMessage) {
	if !acceptMessage(msg) {
		return
	}
	channel := channelPrefix + msg.ID
	if err := protocol.WriteLine(sock, protocol.NewPrompt(msg.Message, nil, &channel)); err != nil {
		a.logger.Warn("write prompt to bridge failed", "error", err)
	}
}

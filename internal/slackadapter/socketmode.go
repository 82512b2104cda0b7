package slackadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/yuiseki/acomm/internal/config"
	"github.com/yuiseki/acomm/internal/protocol"
)

const connectionsOpenURL = "https://slack.com/api/apps.connections.open"

type connectionsOpenResponse struct {
	OK    bool   `json:"ok"`
	URL   string `json:"url"`
	Error string `json:"error"`
}

// socketEnvelope is one Socket Mode frame. Only the events_api shape
// (the only event type the bridge's ingress cares about) is decoded
// further; other envelope types (e.g. "hello", "disconnect") are acked
// like any other envelope and otherwise ignored.
type socketEnvelope struct {
	EnvelopeID string          `json:"envelope_id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
}

type envelopeAck struct {
	EnvelopeID string `json:"envelope_id"`
}

type eventsAPIPayload struct {
	Event slackMessageEvent `json:"event"`
}

type slackMessageEvent struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
	User    string `json:"user"`
	Text    string `json:"text"`
	BotID   string `json:"bot_id,omitempty"`
	Subtype string `json:"subtype,omitempty"`
}

// openConnection calls apps.connections.open to obtain a one-shot
// Socket Mode WebSocket URL.
func (a *Adapter) openConnection() (string, error) {
	req, err := http.NewRequest(http.MethodPost, connectionsOpenURL, nil)
	if err != nil {
		return "", fmt.Errorf("slackadapter: build connections.open request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.AppToken)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("slackadapter: connections.open: %w", err)
	}
	defer resp.Body.Close()

	var out connectionsOpenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("slackadapter: decode connections.open response: %w", err)
	}
	if !out.OK {
		return "", fmt.Errorf("slackadapter: connections.open failed: %s", out.Error)
	}
	return out.URL, nil
}

// runSocketMode opens the Socket Mode connection and drives its
// envelope-ack/ingress loop. It blocks until ctx is cancelled or the
// connection fails unrecoverably; reconnection is the caller's job.
func (a *Adapter) runSocketMode(ctx context.Context, sock net.Conn) error {
	wsURL, err := a.openConnection()
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("slackadapter: dial socket mode: %w", err)
	}
	a.setConn(conn)
	defer conn.Close()

	for {
		var env socketEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("slackadapter: read socket mode frame: %w", err)
		}
		a.logger.Log(ctx, config.LevelTrace, "socket mode envelope received", "envelope_id", env.EnvelopeID, "type", env.Type)

		if env.EnvelopeID != "" {
			if err := a.ackEnvelope(env.EnvelopeID); err != nil {
				a.logger.Warn("envelope ack failed", "error", err)
			}
		}

		if env.Type != "events_api" || len(env.Payload) == 0 {
			continue
		}
		var payload eventsAPIPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			a.logger.Warn("discarding malformed events_api payload", "error", err)
			continue
		}
		a.handleMessageEvent(sock, payload.Event)
	}
}

func (a *Adapter) handleMessageEvent(sock net.Conn, ev slackMessageEvent) {
	if ev.Type != "message" || !acceptMessage(ev) {
		return
	}
	channel := fmt.Sprintf("%s%s:%s", channelPrefix, ev.User, ev.Channel)
	if err := protocol.WriteLine(sock, protocol.NewPrompt(ev.Text, nil, &channel)); err != nil {
		a.logger.Warn("write prompt to bridge failed", "error", err)
	}
}

func (a *Adapter) ackEnvelope(envelopeID string) error {
	return a.writeJSON(envelopeAck{EnvelopeID: envelopeID})
}

func (a *Adapter) setConn(conn *websocket.Conn) {
	a.connMu.Lock()
	a.conn = conn
	a.connMu.Unlock()
}

func (a *Adapter) writeJSON(v interface{}) error {
	a.connMu.Lock()
	defer a.connMu.Unlock()
	if a.conn == nil {
		return fmt.Errorf("slackadapter: no active socket mode connection")
	}
	return a.conn.WriteJSON(v)
}
